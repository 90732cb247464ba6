package run

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	blobpkg "github.com/cirruslabs/imagecache/internal/blob"
	diskpkg "github.com/cirruslabs/imagecache/internal/blob/disk"
	"github.com/cirruslabs/imagecache/internal/blob/memory"
	configpkg "github.com/cirruslabs/imagecache/internal/config"
	feedpkg "github.com/cirruslabs/imagecache/internal/feed"
	"github.com/cirruslabs/imagecache/internal/imagecache"
	"github.com/cirruslabs/imagecache/internal/keyrule"
	"github.com/cirruslabs/imagecache/internal/objecturl"
	profilepkg "github.com/cirruslabs/imagecache/internal/profile"
	serverpkg "github.com/cirruslabs/imagecache/internal/server"
	sessionpkg "github.com/cirruslabs/imagecache/internal/session"
	"github.com/cirruslabs/imagecache/internal/signedurl"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultAddr = "127.0.0.1:8080"

var configPath string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the image cache server",
		RunE:  run,
	}

	cmd.Flags().StringVarP(&configPath, "file", "f", "",
		"configuration file path (e.g. /etc/imagecache.yml)")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	if configPath == "" {
		return fmt.Errorf("configuration file path (-f or --file) needs to be specified")
	}

	// Parse the configuration file
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read configuration file at path %s: %w", configPath, err)
	}

	config, err := configpkg.Parse(bytes.NewReader(configBytes))
	if err != nil {
		return fmt.Errorf("failed to parse configuration file at path %s: %w", configPath, err)
	}

	addr := config.Addr
	if addr == "" {
		addr = defaultAddr
	}

	// Blob store
	var store blobpkg.Store = memory.New()

	if config.Disk != nil {
		limitBytes, err := humanize.ParseBytes(config.Disk.Limit)
		if err != nil {
			return fmt.Errorf("failed to parse disk limit value %q: %w", config.Disk.Limit, err)
		}

		disk, err := diskpkg.New(config.Disk.Dir, limitBytes)
		if err != nil {
			return err
		}

		// Handles don't survive a restart, so neither do their blobs
		if config.Disk.ShouldCleanOnStart() {
			if err := disk.Purge(); err != nil {
				return fmt.Errorf("failed to clean up disk store at %s: %w", config.Disk.Dir, err)
			}
		}

		store = disk
	}

	registryOpts := []objecturl.Option{
		objecturl.WithLogger(zap.S()),
	}

	if config.PublicURL != "" {
		registryOpts = append(registryOpts,
			objecturl.WithBaseURL(strings.TrimSuffix(config.PublicURL, "/")+objecturl.DefaultBaseURL))
	}

	registry, err := objecturl.New(store, registryOpts...)
	if err != nil {
		return err
	}

	cache := imagecache.New(registry,
		imagecache.WithCapacity(config.Capacity),
		imagecache.WithFetchTimeout(config.FetchTimeout),
		imagecache.WithLogger(zap.S()),
	)

	// Session
	sessionOpts := []sessionpkg.Option{
		sessionpkg.WithLogger(zap.S()),
	}

	if config.Backend != nil && config.Backend.Token != "" {
		sessionOpts = append(sessionOpts, sessionpkg.WithToken(config.Backend.Token))
	}

	session := sessionpkg.New(sessionOpts...)
	session.OnLogout(cache.InvalidateAll)

	serverOpts := []serverpkg.Option{
		serverpkg.WithSession(session),
		serverpkg.WithLogger(zap.S()),
	}

	// Signers
	var chain signedurl.Chain

	if config.Backend != nil {
		chain = append(chain, signedurl.NewClient(config.Backend.BaseURL,
			signedurl.WithTokenFunc(session.Token),
			signedurl.WithClientLogger(zap.S()),
		))
	}

	if config.S3 != nil {
		presigner, err := signedurl.NewPresigner(cmd.Context(), &signedurl.PresignerConfig{
			Endpoint:        config.S3.Endpoint,
			Region:          config.S3.Region,
			AccessKeyID:     config.S3.AccessKeyID,
			AccessKeySecret: config.S3.AccessKeySecret,
			Expires:         config.S3.Expires,
		})
		if err != nil {
			return err
		}

		chain = append(chain, presigner)
	}

	var signer signedurl.Signer

	if len(chain) != 0 {
		signer = chain
	}

	// Cache key rules
	var rules keyrule.Rules

	for _, configRule := range config.Rules {
		rule, err := keyrule.New(configRule.Pattern, configRule.IgnoreParameters)
		if err != nil {
			return err
		}

		rules = append(rules, rule)
	}

	refresher := signedurl.NewRefresher(cache, signer,
		signedurl.WithRules(rules),
		signedurl.WithRefresherLogger(zap.S()),
	)

	// Session-scoped caches backed by the API
	if config.Backend != nil {
		feed := feedpkg.New(config.Backend.BaseURL,
			feedpkg.WithSigner(signer),
			feedpkg.WithTokenFunc(session.Token),
			feedpkg.WithLogger(zap.S()),
		)
		// Posts carry signed media URLs, re-sign them together with the images
		cache.OnInvalidateAll(feed.ClearAll)

		profile := profilepkg.New(config.Backend.BaseURL,
			profilepkg.WithTokenFunc(session.Token),
			profilepkg.WithLogger(zap.S()),
		)
		session.OnLogout(profile.Clear)

		serverOpts = append(serverOpts, serverpkg.WithFeed(feed), serverpkg.WithProfile(profile))
	}

	server, err := serverpkg.New(addr, registry, cache, refresher, serverOpts...)
	if err != nil {
		return err
	}

	return server.Run(cmd.Context())
}
