package rpc

// Request is the wire shape accepted on the RPC endpoint.
type Request struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// Response is the uniform envelope every RPC answer uses. Data is set on
// success, Error on failure; the absent one is dropped from the wire.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result wraps a payload in a success envelope.
func Result(data any) Response {
	return Response{Success: true, Data: data}
}

// Failure wraps a message in an error envelope.
func Failure(message string) Response {
	return Response{Success: false, Error: message}
}
