package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/arblift/stylusctl/internal/api"
	"github.com/arblift/stylusctl/internal/chain"
	"github.com/arblift/stylusctl/internal/config"
	"github.com/arblift/stylusctl/internal/lifecycle"
	"github.com/arblift/stylusctl/internal/logging"
	"github.com/arblift/stylusctl/internal/retry"
)

func main() {
	logging.ConfigureRuntime()

	f := flag.NewFlagSet("stylusctl", flag.ExitOnError)
	configPath := f.String("config", "", "Path to TOML node configuration")
	codePath := f.String("code", "", "Path to the deployment transaction data blob")
	initData := f.String("init-data", "", "Hex-encoded initializer calldata (0x-prefixed)")
	activationValue := f.String("activation-value", "0", "Value in wei sent with activation")
	serve := f.Bool("serve", false, "Serve the status API after bootstrap")
	if err := f.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("flag parse failed")
	}

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("backend setup failed")
	}

	registry := lifecycle.NewRegistry()
	orchestrator := lifecycle.NewOrchestrator(backend, registry)
	ctx := context.Background()

	if err := waitForNode(ctx, cfg, backend); err != nil {
		log.Fatal().Err(err).Msg("execution node unreachable")
	}

	if *codePath != "" {
		address, err := runDeploy(ctx, orchestrator, *codePath, *initData, *activationValue)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap failed")
		}
		fmt.Println(address.Hex())
	}

	if *serve {
		server := api.NewServer(api.Options{
			Name:        cfg.Name,
			Addr:        cfg.API.Addr,
			CorsOrigins: cfg.API.CorsOrigins,
		}, registry, backend)
		if err := server.Run(); err != nil {
			log.Fatal().Err(err).Msg("status api stopped")
		}
	}
}

func resolveConfig(path string) (config.NodeConfig, error) {
	if path == "" {
		return config.DefaultNodeConfig(), nil
	}
	return config.LoadNodeConfig(path)
}

func buildBackend(cfg config.NodeConfig) (chain.Backend, error) {
	var jwtSecret []byte
	if cfg.RPC.JWTSecretPath != "" {
		secret, err := readJWTSecret(cfg.RPC.JWTSecretPath)
		if err != nil {
			return nil, err
		}
		jwtSecret = secret
	}
	urls := append([]string{cfg.RPC.URL}, cfg.RPC.Secondary...)
	from := common.HexToAddress(cfg.RPC.From)
	timeout := time.Duration(cfg.RPC.TimeoutSeconds) * time.Second
	return chain.NewRPCBackend(urls, from, timeout, jwtSecret), nil
}

func readJWTSecret(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwt secret load failed (%s): %w", path, err)
	}
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(text, "0x")
	secret, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("jwt secret decode failed (%s): %w", path, err)
	}
	return secret, nil
}

// waitForNode retries the layer-local block number query until the node
// answers. Only transport failures are retried; reverts never are.
func waitForNode(ctx context.Context, cfg config.NodeConfig, backend chain.Backend) error {
	backoff := retry.Config{
		InitialDelay: time.Duration(cfg.Retr.InitialDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retr.MaxDelayMS) * time.Millisecond,
		Multiplier:   cfg.Retr.Multiplier,
		Jitter:       cfg.Retr.Jitter,
		MaxAttempts:  cfg.Retr.MaxAttempts,
	}
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		num, err := backend.BlockNumber(ctx)
		if err != nil {
			return err
		}
		log.Debug().Uint64("block", num).Msg("execution node reachable")
		return nil
	}, func(err error) bool {
		return errors.Is(err, chain.ErrCallFailed)
	})
}

func runDeploy(ctx context.Context, orchestrator *lifecycle.Orchestrator, codePath, initData, activationValue string) (common.Address, error) {
	code, err := os.ReadFile(codePath)
	if err != nil {
		return common.Address{}, fmt.Errorf("code load failed (%s): %w", codePath, err)
	}
	var args []byte
	if initData != "" {
		args, err = hexutil.Decode(initData)
		if err != nil {
			return common.Address{}, fmt.Errorf("init-data decode failed: %w", err)
		}
	}
	value, err := uint256.FromDecimal(activationValue)
	if err != nil {
		return common.Address{}, fmt.Errorf("activation-value parse failed: %w", err)
	}
	return orchestrator.DeployAndBootstrap(ctx, code, args, value)
}
