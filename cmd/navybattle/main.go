package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"navybattle/internal/app"
	"navybattle/internal/codec"
	"navybattle/internal/config"
	"navybattle/internal/game"
	"navybattle/internal/logger"
	"navybattle/internal/server"
	"navybattle/internal/zk"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cfg := config.Load()
	switch os.Args[1] {
	case "play":
		logger.Init()
		cmdPlay(cfg)
	case "init":
		logger.Init()
		cmdInit(cfg)
	case "commit":
		logger.Init()
		cmdCommit(cfg)
	case "shoot":
		logger.Init()
		cmdShoot(cfg)
	case "verify":
		logger.Init()
		cmdVerify(cfg)
	case "serve":
		logger.InitWithDefault("info")
		cmdServe(cfg)
	default:
		usage()
	}
}

func usage() {
	fmt.Println(`Navy Battle

Commands:
  play   [--auto] [--preset=false] [--verify] [--seed N] [--keys ./keys]
  init   --out board.json [--seed N]
  commit --board board.json --secret secret.json --keys ./keys
  shoot  --secret secret.json --keys ./keys --x X --y Y --out proof.json
  verify --vk ./keys/shot.vk --root ROOT_HEX --proof proof.json --x X --y Y
  serve  --addr :8080 --keys ./keys`)
}

func buildOptions(cfg *config.Config) game.BuildOptions {
	return game.BuildOptions{MaxAttempts: cfg.MaxAttempts, MaxRestarts: cfg.MaxRestarts}
}

// cell turns X (column) and Y (row) flags into a coordinate.
func cell(x, y int) game.Coordinate {
	c := game.Coordinate{Row: y, Col: x}
	if !c.InBounds() {
		log.Fatal().Int("x", x).Int("y", y).Msgf("X and Y must be in 1..%d", game.Size)
	}
	return c
}

func cmdInit(cfg *config.Config) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", "board.json", "output board file")
	seed := fs.Int64("seed", cfg.Seed, "random seed (0 = time based)")
	_ = fs.Parse(os.Args[2:])

	b, err := app.InitBoard(context.Background(), *seed, buildOptions(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Building board")
	}
	if err := codec.SaveJSON(*out, b); err != nil {
		log.Fatal().Err(err).Msg("Writing board")
	}
	fmt.Println("✓ wrote", *out)
}

func cmdCommit(cfg *config.Config) {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	boardPath := fs.String("board", "board.json", "board file")
	secretPath := fs.String("secret", "secret.json", "defender secret state")
	keysDir := fs.String("keys", cfg.KeysDir, "keys directory")
	_ = fs.Parse(os.Args[2:])

	var b game.Board
	if err := codec.LoadJSON(*boardPath, &b); err != nil {
		log.Fatal().Err(err).Msg("Reading board")
	}
	res, err := app.Commit(b)
	if err != nil {
		log.Fatal().Err(err).Msg("Committing board")
	}
	if _, err := zk.EnsureKeys(*keysDir); err != nil {
		log.Fatal().Err(err).Msg("Preparing keys")
	}
	fmt.Println("ROOT:", res.RootHex)

	if err := codec.SaveJSON(*secretPath, &res.Secret); err != nil {
		log.Fatal().Err(err).Msg("Writing secret")
	}
	fmt.Println("✓ wrote", *secretPath)
}

func cmdShoot(cfg *config.Config) {
	fs := flag.NewFlagSet("shoot", flag.ExitOnError)
	secretPath := fs.String("secret", "secret.json", "defender secret state")
	keysDir := fs.String("keys", cfg.KeysDir, "keys directory")
	x := fs.Int("x", 0, "column [1..6]")
	y := fs.Int("y", 0, "row [1..6]")
	out := fs.String("out", "proof.json", "proof output")
	_ = fs.Parse(os.Args[2:])

	var sec codec.Secret
	if err := codec.LoadJSON(*secretPath, &sec); err != nil {
		log.Fatal().Err(err).Msg("Reading secret")
	}
	keys, err := zk.EnsureKeys(*keysDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Preparing keys")
	}
	res, err := app.Shoot(keys, sec, cell(*x, *y))
	if err != nil {
		log.Fatal().Err(err).Msg("Proving shot")
	}
	if err := codec.SaveJSON(*out, &res.Payload); err != nil {
		log.Fatal().Err(err).Msg("Writing proof")
	}
	fmt.Printf("✓ wrote %s (result: %s)\n", *out, map[uint8]string{0: "MISS", 1: "HIT"}[res.Bit])
}

func cmdVerify(cfg *config.Config) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	vkPath := fs.String("vk", zk.VKPath(cfg.KeysDir), "verifying key file")
	rootHex := fs.String("root", "", "root hex prefixed 0x")
	proofPath := fs.String("proof", "proof.json", "proof payload json")
	x := fs.Int("x", 0, "column [1..6]")
	y := fs.Int("y", 0, "row [1..6]")
	_ = fs.Parse(os.Args[2:])

	if *rootHex == "" {
		log.Fatal().Msg("--root required")
	}
	root, err := codec.ParseHex(*rootHex)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid root")
	}
	want := cell(*x, *y)

	var payload codec.ShotProofPayload
	if err := codec.LoadJSON(*proofPath, &payload); err != nil {
		log.Fatal().Err(err).Msg("Reading proof")
	}
	vk, err := zk.ReadVK(*vkPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Reading verifying key")
	}
	res, err := app.VerifyWithRoot(vk, root, payload)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid proof")
	}
	if res.At != want {
		log.Fatal().Msgf("proof is for X=%d Y=%d but expected X=%d Y=%d", res.At.Col, res.At.Row, want.Col, want.Row)
	}
	if !res.Valid {
		log.Fatal().Err(errors.New("invalid proof")).Msg("Verification failed")
	}
	fmt.Println(map[uint8]string{0: "MISS", 1: "HIT"}[res.Hit])
}

func cmdServe(cfg *config.Config) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.KeysDir, "keys", cfg.KeysDir, "keys directory")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for new matches (0 = time based)")
	fs.BoolVar(&cfg.PresetOpponent, "preset", cfg.PresetOpponent, "computer uses a preset board")
	fs.DurationVar(&cfg.MatchTTL, "match-ttl", cfg.MatchTTL, "drop matches idle this long (0 = never)")
	_ = fs.Parse(os.Args[2:])

	srv := server.New(cfg)
	mux := http.NewServeMux()
	srv.Routes(mux)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go srv.RunJanitor(janitorCtx)

	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.WithCORS(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Serving")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}
