// Command hlstats-token mints a beacon token for a server (§6): the
// admin-side half of address-pair-ambiguous deployments, where a
// containerized game server behind NAT can't be identified by its
// source address alone.
//
// Grounded on the teacher's cmd/migrate-players/main.go for the
// "small one-shot CLI that opens its own Postgres connection and
// exits" shape.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	dbpkg "github.com/jstnmthw/hlstatsnext-sub008/db"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/config"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/cryptoutil"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
)

func main() {
	serverID := flag.Int64("server-id", 0, "existing server id to mint a token for")
	address := flag.String("address", "", "server address, used with -port -game to register a new server first")
	port := flag.Int("port", 0, "server port")
	game := flag.String("game", "", "game code, required when registering a new server")
	flag.Parse()

	if *serverID == 0 && *address == "" {
		fmt.Fprintln(os.Stderr, "usage: hlstats-token -server-id N | -address A -port P -game G")
		os.Exit(2)
	}

	cfg := config.Load()
	ctx := context.Background()

	dsn := dbpkg.DSN(cfg.Db.Host, cfg.Db.Port, cfg.Db.User, cfg.Db.Pass, cfg.Db.Name)
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("opening postgres: %v", err)
	}
	defer database.Close()

	repo := repository.NewPostgres(database)

	id := model.ServerID(*serverID)
	if id == 0 {
		if *game == "" {
			log.Fatalf("-game is required when registering a new server")
		}
		row, err := repo.FindOrCreateServer(ctx, *address, *port, *game)
		if err != nil {
			log.Fatalf("registering server: %v", err)
		}
		id = row.ID
	}

	token, hash, prefix, err := cryptoutil.GenerateToken()
	if err != nil {
		log.Fatalf("generating token: %v", err)
	}

	if err := repo.SetServerToken(ctx, id, hash, prefix); err != nil {
		log.Fatalf("storing token: %v", err)
	}

	fmt.Printf("server %d beacon token (shown once): %s\n", id, token)
}
