package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Prunes old portal call logs. Meant to run from cron on installations
// that keep the default 90-day retention.
func main() {
	days := flag.Int("days", 90, "delete call logs older than this many days")
	dryRun := flag.Bool("dry-run", false, "count matching logs without deleting")
	flag.Parse()

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "portal-sync"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	collection := client.Database(dbName).Collection("portal_call_logs")
	cutoff := time.Now().AddDate(0, 0, -*days)
	filter := bson.M{"created_at": bson.M{"$lt": cutoff}}

	if *dryRun {
		count, err := collection.CountDocuments(ctx, filter)
		if err != nil {
			log.Fatalf("Failed to count call logs: %v", err)
		}
		fmt.Printf("Would delete %d call logs older than %s\n", count, cutoff.Format(time.RFC3339))
		return
	}

	res, err := collection.DeleteMany(ctx, filter)
	if err != nil {
		log.Fatalf("Failed to delete call logs: %v", err)
	}
	fmt.Printf("Deleted %d call logs older than %s\n", res.DeletedCount, cutoff.Format(time.RFC3339))
}
