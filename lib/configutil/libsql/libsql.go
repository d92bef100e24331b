package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct selects the tender database, a remote libsql server when Url is
// set or a local sqlite file otherwise.
type Struct struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// IsRemote reports whether dsn should go through the libsql driver.
func IsRemote(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "wss://")
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		return openRemote(config.Url, config.AuthToken)
	}
	if config.File == "" {
		return nil, fmt.Errorf("neither a database url nor a file was specified")
	}
	if IsRemote(config.File) {
		return openRemote(config.File, config.AuthToken)
	}
	return openFile(config.File)
}

func openRemote(link, token string) (*sql.DB, error) {
	if token != "" {
		parsed, err := url.Parse(link)
		if err != nil {
			return nil, err
		}
		query := parsed.Query()
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
		link = parsed.String()
	}
	db, err := sql.Open("libsql", link)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	return db, nil
}

func openFile(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}
