package httpapi

import (
	"context"

	"github.com/plusmaps/atlas/internal/app/services/catalog"
	apperrors "github.com/plusmaps/atlas/internal/errors"
	"github.com/plusmaps/atlas/internal/rpc"
)

// RegisterMethods installs the catalog methods on the dispatcher. Each
// handler validates its own required parameters before touching the service.
func RegisterMethods(d *rpc.Dispatcher, svc *catalog.Service) error {
	if err := d.Register("getTopLocations", topLocations(svc)); err != nil {
		return err
	}
	if err := d.Register("getLocationById", locationByID(svc)); err != nil {
		return err
	}
	return d.Register("searchLocations", searchLocations(svc))
}

func topLocations(svc *catalog.Service) rpc.HandlerFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		limit := catalog.DefaultLimit
		if raw, present := params["limit"]; present {
			n, ok := raw.(float64)
			if !ok {
				return nil, apperrors.InvalidParams("Invalid or missing 'limit'")
			}
			limit = int(n)
		}
		return svc.Top(ctx, limit)
	}
}

func locationByID(svc *catalog.Service) rpc.HandlerFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		id, ok := params["id"].(string)
		if !ok {
			return nil, apperrors.InvalidParams("Invalid or missing 'id'")
		}
		return svc.ByID(ctx, id)
	}
}

func searchLocations(svc *catalog.Service) rpc.HandlerFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		query, ok := params["query"].(string)
		if !ok {
			return nil, apperrors.InvalidParams("Invalid or missing 'query'")
		}
		return svc.Search(ctx, query)
	}
}
