package sqlstore

import (
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/atelier-studio/atelier/app/store"
	"github.com/atelier-studio/atelier/pkg/register"
	"github.com/atelier-studio/atelier/pkg/sqlstore"
	"github.com/atelier-studio/atelier/pkg/types"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

//go:embed *.sql
var CreateTableFiles embed.FS

type Provider struct {
	*sqlstore.SqlProvider
	stores *Stores
}

type Stores struct {
	store.SessionStore
	store.MessageStore
	store.EntityStore
	store.AssetStore
	store.TaskStore
	store.TrashStore
	store.PreferenceStore
	store.EntityVectorStore
}

type RegisterKey struct{}

// NewProvider wires every table store registered under RegisterKey onto p.
func NewProvider(p *sqlstore.SqlProvider) *Provider {
	provider := &Provider{SqlProvider: p, stores: &Stores{}}
	register.Apply(RegisterKey{}, provider)
	return provider
}

func MustSetup(m sqlstore.ConnectConfig, s ...sqlstore.ConnectConfig) func() *Provider {
	provider := NewProvider(sqlstore.MustSetupProvider(m, s...))
	return func() *Provider {
		return provider
	}
}

// Install enables extensions and runs every embedded migration once.
func (p *Provider) Install() error {
	if err := p.enableExtensions(); err != nil {
		return err
	}
	if err := p.ensureMigrationTable(); err != nil {
		return err
	}

	files, err := CreateTableFiles.ReadDir(".")
	if err != nil {
		return err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		executed, err := p.isFileExecuted(file.Name())
		if err != nil {
			return err
		}
		if executed {
			continue
		}

		content, err := CreateTableFiles.ReadFile(file.Name())
		if err != nil {
			return err
		}
		slog.Info("apply migration", slog.String("file", file.Name()))
		if _, err = p.GetMaster().Exec(string(content)); err != nil {
			return fmt.Errorf("migration %s: %w", file.Name(), err)
		}
		if err = p.markFileExecuted(file.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) enableExtensions() error {
	extensions := []string{
		"CREATE EXTENSION IF NOT EXISTS vector;",
	}
	for _, ext := range extensions {
		if _, err := p.GetMaster().Exec(ext); err != nil {
			return fmt.Errorf("failed to enable extension: %w\nSQL: %s", err, ext)
		}
	}
	return nil
}

func (p *Provider) ensureMigrationTable() error {
	_, err := p.GetMaster().Exec(`CREATE TABLE IF NOT EXISTS ` + types.TABLE_PREFIX + `schema_migrations (
    filename VARCHAR(255) PRIMARY KEY,
    executed_at BIGINT NOT NULL
);`)
	return err
}

func (p *Provider) isFileExecuted(filename string) (bool, error) {
	var count int
	err := p.GetMaster().Get(&count,
		"SELECT COUNT(*) FROM "+types.TABLE_PREFIX+"schema_migrations WHERE filename = $1", filename)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Provider) markFileExecuted(filename string) error {
	_, err := p.GetMaster().Exec(
		"INSERT INTO "+types.TABLE_PREFIX+"schema_migrations (filename, executed_at) VALUES ($1, $2) ON CONFLICT (filename) DO NOTHING",
		filename, time.Now().Unix())
	return err
}

func (p *Provider) SessionStore() store.SessionStore {
	return p.stores.SessionStore
}

func (p *Provider) MessageStore() store.MessageStore {
	return p.stores.MessageStore
}

func (p *Provider) EntityStore() store.EntityStore {
	return p.stores.EntityStore
}

func (p *Provider) AssetStore() store.AssetStore {
	return p.stores.AssetStore
}

func (p *Provider) TaskStore() store.TaskStore {
	return p.stores.TaskStore
}

func (p *Provider) TrashStore() store.TrashStore {
	return p.stores.TrashStore
}

func (p *Provider) PreferenceStore() store.PreferenceStore {
	return p.stores.PreferenceStore
}

func (p *Provider) EntityVectorStore() store.EntityVectorStore {
	return p.stores.EntityVectorStore
}

var _ store.Provider = (*Provider)(nil)
