package migrations

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrationsFormOrderedPairs(t *testing.T) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		t.Fatalf("open embedded source: %v", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		t.Fatalf("first version: %v", err)
	}

	var versions []uint
	for {
		versions = append(versions, version)

		for direction, read := range map[string]func(uint) (io.ReadCloser, string, error){
			"up":   src.ReadUp,
			"down": src.ReadDown,
		} {
			rc, _, err := read(version)
			if err != nil {
				t.Fatalf("version %d has no %s migration: %v", version, direction, err)
			}
			body, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				t.Fatalf("read %s of version %d: %v", direction, version, err)
			}
			if len(strings.TrimSpace(string(body))) == 0 {
				t.Fatalf("%s migration of version %d is empty", direction, version)
			}
		}

		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			t.Fatalf("next after %d: %v", version, err)
		}
		version = next
	}

	if len(versions) != 3 {
		t.Fatalf("versions = %v, want 3", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Fatalf("versions not strictly increasing: %v", versions)
		}
	}
}

func TestFunctionsMigrationDefinesEveryStoredFunction(t *testing.T) {
	body, err := files.ReadFile("sql/0003_catalog_functions.up.sql")
	if err != nil {
		t.Fatalf("read functions migration: %v", err)
	}

	for _, fn := range []string{
		"get_top_locations",
		"get_location_by_id",
		"search_locations",
		"log_user_request",
		"log_user_response",
		"is_user_blocked",
	} {
		if !strings.Contains(string(body), fn) {
			t.Fatalf("functions migration does not define %s", fn)
		}
	}
}
