package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	settingsTable := os.Getenv("SETTINGS_TABLE")
	editsQueue := os.Getenv("EDITS_QUEUE")
	if settingsTable == "" || editsQueue == "" {
		log.Fatal("missing SETTINGS_TABLE or EDITS_QUEUE")
	}

	ctx := context.Background()

	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		log.Fatalf("tables client: %v", err)
	}
	if err := createTable(ctx, svc, settingsTable); err != nil {
		log.Fatalf("create table %s: %v", settingsTable, err)
	}
	if err := createQueue(ctx, connStr, editsQueue); err != nil {
		log.Fatalf("create queue %s: %v", editsQueue, err)
	}

	if user := os.Getenv("SEED_USER_ID"); user != "" {
		seed := seedSettings{
			UserID:        user,
			OwnerName:     os.Getenv("SEED_OWNER_NAME"),
			DefaultFilter: os.Getenv("SEED_DEFAULT_FILTER"),
		}
		if v := os.Getenv("SEED_NOTE_LIMIT"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				log.Fatalf("invalid SEED_NOTE_LIMIT: %q", v)
			}
			seed.NoteLimit = n
		}
		if err := upsertSettings(ctx, svc.NewClient(settingsTable), seed); err != nil {
			log.Fatalf("seed settings: %v", err)
		}
		log.WithField("user", user).Info("settings seeded")
	}

	log.Info("storage init complete")
}

func createTable(ctx context.Context, svc *aztables.ServiceClient, name string) error {
	_, err := svc.NewClient(name).CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

func createQueue(ctx context.Context, connStr, name string) error {
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	if err != nil {
		return err
	}
	_, err = q.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}

type seedSettings struct {
	UserID        string
	OwnerName     string
	DefaultFilter string
	NoteLimit     int
}

type entityUpserter interface {
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
}

func upsertSettings(ctx context.Context, table entityUpserter, seed seedSettings) error {
	// keyed the way the API's settings store reads it back
	row := map[string]any{
		"PartitionKey": seed.UserID,
		"RowKey":       seed.UserID,
		"OwnerName":    seed.OwnerName,
	}
	if seed.DefaultFilter != "" {
		row["DefaultFilter"] = seed.DefaultFilter
	}
	if seed.NoteLimit > 0 {
		row["NoteLimit"] = seed.NoteLimit
	}
	data, err := sonic.Marshal(row)
	if err != nil {
		return err
	}
	_, err = table.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}
