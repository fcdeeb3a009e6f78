package main

import (
	"context"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/config"
	"github.com/yush1006/todo/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv: %v", err)
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	cfg, err := config.LoadProvisioning("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Info("storage init starting")

	ctx := context.Background()
	if err := createTable(ctx, cfg.StorageConnectionString, cfg.TasksTable); err != nil {
		log.Fatalf("create table %s: %v", cfg.TasksTable, err)
	}
	if cfg.TaskEventsQueue != "" {
		if err := createQueue(ctx, cfg.StorageConnectionString, cfg.TaskEventsQueue); err != nil {
			log.Fatalf("create queue %s: %v", cfg.TaskEventsQueue, err)
		}
	}

	log.Info("storage init complete")
}

func createTable(ctx context.Context, connStr, name string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, storage.TableClientOptions())
	if err != nil {
		return err
	}
	if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil && !storage.IsAlreadyExists(err) {
		return err
	}
	log.WithField("table", name).Debug("table ready")
	return nil
}

func createQueue(ctx context.Context, connStr, name string) error {
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, storage.QueueClientOptions())
	if err != nil {
		return err
	}
	if _, err := q.Create(ctx, nil); err != nil && !storage.IsAlreadyExists(err) {
		return err
	}
	log.WithField("queue", name).Debug("queue ready")
	return nil
}
