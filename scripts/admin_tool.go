package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/counsel-relay-api/assignment"
	"github.com/linesmerrill/counsel-relay-api/config"
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/identity"
	"github.com/linesmerrill/counsel-relay-api/logging"
	"github.com/linesmerrill/counsel-relay-api/models"
	"github.com/linesmerrill/counsel-relay-api/sessions"
)

// Operator utility for the relay.
// Usage:
//
//	go run scripts/admin_tool.go --hash-password <password>
//	DB_URI=... go run scripts/admin_tool.go --export sessions.json --limit 500
func main() {
	hashPassword := pflag.String("hash-password", "", "print the bcrypt hash to use as ADMIN_PASSWORD_HASH")
	exportFile := pflag.String("export", "", "write the finished sessions export document to this file")
	limit := pflag.Int("limit", sessions.DefaultExportLimit, "maximum number of sessions to export")
	pflag.Parse()

	log := logging.New(os.Getenv("LOG_ENV"))

	switch {
	case *hashPassword != "":
		hashed, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalw("failed to generate hash", "error", err)
		}
		fmt.Println(string(hashed))
	case *exportFile != "":
		if err := export(*exportFile, *limit); err != nil {
			log.Fatalw("export failed", "error", err)
		}
		log.Infow("export written", "file", *exportFile)
	default:
		pflag.Usage()
		os.Exit(2)
	}
}

func export(path string, limit int) error {
	conf := config.New()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := databases.NewClient(conf)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	db := databases.NewDatabase(conf, client)

	taxonomy, err := config.LoadTaxonomy(conf.CategoriesFile, conf.DefaultLanguage)
	if err != nil {
		return err
	}
	handles, err := identity.NewHandleGenerator(conf.HandlePrefix, conf.HandleDigits)
	if err != nil {
		return err
	}
	store := sessions.NewMongoStore(
		databases.NewChatSessionDatabase(db),
		databases.NewMessageDatabase(db),
		databases.NewCounterDatabase(db),
	)
	directory := assignment.NewMongoDirectory(databases.NewCounselorDatabase(db))
	engine, err := assignment.NewEngine(directory, store, assignment.Policy(conf.AssignmentPolicy))
	if err != nil {
		return err
	}
	c, err := core.New(core.Deps{
		Identities: identity.NewRegistry(identity.NewMongoStore(databases.NewIdentityDatabase(db)), handles, conf.HandleMaxAttempts),
		Sessions:   store,
		Directory:  directory,
		Engine:     engine,
		Sender:     discard{},
		Taxonomy:   taxonomy,
	})
	if err != nil {
		return err
	}

	b, err := c.ExportJSON(ctx, limit)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// discard is the sender of an offline core; exporting never messages anyone
type discard struct{}

func (discard) Send(context.Context, string, models.Outbound) error {
	return models.ErrDeliveryFailed
}
