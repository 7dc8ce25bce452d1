package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dasiyes/ivmchat/configs/config"
	"github.com/dasiyes/ivmchat/internal/chat"
	"github.com/dasiyes/ivmchat/internal/data/firestoredb"
	"github.com/dasiyes/ivmchat/internal/server"
	"github.com/dasiyes/ivmchat/internal/server/router"
	"github.com/dasiyes/ivmchat/internal/services"
	"github.com/dasiyes/ivmchat/pkg/gopool"
)

var version = "dev"

func main() {
	var (
		debug   = flag.Bool("debug", false, "debug mode")
		vers    = flag.Bool("version", false, "prints version")
		workers = flag.Int("workers", 0, "max workers count")
		queue   = flag.Int("queue", 0, "workers task queue size")
		cfgfn   = flag.String("config", "configs/config.yaml", "--config=<file_name> configuration file name. Default is configs/config.yaml")
	)

	flag.Parse()
	ctx := context.Background()

	if *vers {
		fmt.Printf("ivmchat version %s\n", version)
		os.Exit(0)
	}

	lgr := log.New()
	lgr.SetFormatter(&log.JSONFormatter{})
	if *debug {
		lgr.SetLevel(log.DebugLevel)
	}

	// Load the configuration file
	cfg, err := config.LoadConfig(*cfgfn)
	if err != nil {
		lgr.Fatalf("[main] error loading configuration file %s. Exit, unable to proceed", *cfgfn)
	}

	// The pool parameters can be set either in the configuration file or as
	// runtime flags. The config file value takes precedence over the flag.
	pool_max_workers := cfg.PoolMaxWorkers
	if pool_max_workers < 1 {
		pool_max_workers = *workers
		if pool_max_workers < 1 {
			pool_max_workers = 128
		}
	}

	pool_queue := cfg.PoolQueue
	if pool_queue < 1 {
		pool_queue = *queue
		if pool_queue < 1 {
			pool_queue = 1
		}
	}

	// Initialize the IP access lists repository. The relay runs without it
	// when the access lists are disabled in the configuration.
	var lists chat.ListRepo
	if cfg.AccessListsEnabled {
		prj := cfg.GetProjectID()
		if prj == "" {
			lgr.Fatal("[main] firestore project id is empty. Exit: unable to proceed")
		}
		clientFrst, err := firestore.NewClient(ctx, prj)
		if err != nil {
			lgr.Fatalf("[main] firestore client init error %s. Exit: unable to proceed", err.Error())
		}
		defer clientFrst.Close()

		lists, err = firestoredb.NewListRepository(
			&ctx, clientFrst, cfg.GetWhiteListCollectionName(), cfg.GetBlackListCollectionName())
		if err != nil {
			lgr.Fatalf("[main] firestore repository init error %s. Exit: unable to proceed", err.Error())
		}
	}

	// The goroutine pool runs the websocket connection handlers
	pool := gopool.NewPool(pool_max_workers, pool_queue, 1)
	session := services.NewSession(pool, cfg, lgr)

	httpServer := server.NewInstance(lgr)
	hdlr := router.NewHandler(lgr, lists, cfg, session)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		lgr.Infof("[main] ...starting ivmchat instance %s at %s...", version, addr)
		return httpServer.Start(addr, hdlr)
	})

	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case s := <-sig:
			lgr.Infof("[main] received signal %v, shutting down...", s)
			session.Close()
			httpServer.Shutdown()
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	if err := g.Wait(); err != nil {
		lgr.Errorf("[main] ivmchat http server terminated! %v", err)
	}
}
