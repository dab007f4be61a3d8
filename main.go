/*
Qgrid trains a tabular Q-learning agent in a small grid world: starting from the top left
cell, the agent learns to reach the goal while avoiding the penalty cells. The environment
renders each step through a pluggable renderer; the browser renderer also shows the value
table and greedy policy as they are learned, and the terminal renderer redraws the grid in
place. Training runs for the configured number of episodes or until its deadline, after
which the browser views remain served until interrupted.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mvtalan/Q-Learning-m/assets"
	"github.com/mvtalan/Q-Learning-m/grid_world"
	"github.com/mvtalan/Q-Learning-m/reinforcement"
	"github.com/mvtalan/Q-Learning-m/report"
	"github.com/mvtalan/Q-Learning-m/server"
	"github.com/mvtalan/Q-Learning-m/terminal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	RENDER_WEB  = "web"
	RENDER_TERM = "term"
	RENDER_NONE = "none"
)

var rootCmd = &cobra.Command{
	Use:   "qgrid",
	Short: "Q-learning in a 5x5 grid world",
	Long: `Qgrid trains a Q-learning agent to reach the goal of a 5x5 grid world
while avoiding its penalty cells, rendering every step in the browser or the terminal.

Flags may also be set by environment variables prefixed with QGRID, e.g. QGRID_ADDR=:9090.`,
	RunE:          runApp,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("config", "./config.yaml", "Training config file; defaults apply if it does not exist")
	flags.String("renderer", RENDER_WEB, "Renderer (web, term, none)")
	flags.String("addr", ":8080", "Address served by the web renderer")
	flags.String("img", "./img", "Directory of the sprite images")
	flags.Duration("render-delay", grid_world.DEFAULT_RENDER_DELAY, "Pause before each render")
	flags.Duration("reset-delay", grid_world.DEFAULT_RESET_DELAY, "Pause before each reset")
	flags.String("terminal-policy", string(grid_world.STRICT), "Stepping a finished episode (strict, permissive, autoreset)")
	flags.String("chart", "", "Write an html chart of episode rewards to this file after training")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("debug", false, "Print the grid and its values after every episode")

	// Bind flags to viper for environment variable support
	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("QGRID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// appConfig holds the resolved flag and environment settings.
type appConfig struct {
	configPath     string
	renderer       string
	addr           string
	imgDir         string
	renderDelay    time.Duration
	resetDelay     time.Duration
	terminalPolicy string
	chartPath      string
	logLevel       string
	debug          bool
}

func loadAppConfig() appConfig {
	cfg := appConfig{
		configPath:     viper.GetString("config"),
		renderer:       viper.GetString("renderer"),
		addr:           viper.GetString("addr"),
		imgDir:         viper.GetString("img"),
		renderDelay:    viper.GetDuration("render-delay"),
		resetDelay:     viper.GetDuration("reset-delay"),
		terminalPolicy: viper.GetString("terminal-policy"),
		chartPath:      viper.GetString("chart"),
		logLevel:       viper.GetString("log-level"),
		debug:          viper.GetBool("debug"),
	}
	// Headless training runs at full speed unless pacing is explicitly requested.
	if cfg.renderer == RENDER_NONE {
		if !viper.IsSet("render-delay") {
			cfg.renderDelay = 0
		}
		if !viper.IsSet("reset-delay") {
			cfg.resetDelay = 0
		}
	}
	return cfg
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

// loadTrainingConfig reads the training config, or returns the defaults if the file does not exist.
func loadTrainingConfig(path string, logger zerolog.Logger) (*reinforcement.TrainingConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("config", path).Msg("config not found, using defaults")
		return reinforcement.DefaultConfig(), nil
	}
	return reinforcement.FromYaml(path)
}

func runApp(cmd *cobra.Command, args []string) (err error) {
	appCfg := loadAppConfig()

	var logger zerolog.Logger
	if logger, err = newLogger(os.Stderr, appCfg.logLevel); err != nil {
		return
	}

	var trainCfg *reinforcement.TrainingConfig
	if trainCfg, err = loadTrainingConfig(appCfg.configPath, logger); err != nil {
		return
	}

	var policy grid_world.TerminalPolicy
	if policy, err = grid_world.ParseTerminalPolicy(appCfg.terminalPolicy); err != nil {
		return
	}

	var learner *reinforcement.Learner
	if learner, err = reinforcement.NewLearner(trainCfg, rand.New(rand.NewSource(time.Now().UnixNano()))); err != nil {
		return
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	group, groupCtx := errgroup.WithContext(appCtx)

	tableUpdates := make(chan grid_world.ValueTable, 1)
	var renderer grid_world.Renderer
	switch appCfg.renderer {
	case RENDER_WEB:
		var sprites *assets.Set
		if sprites, err = assets.Load(appCfg.imgDir); err != nil {
			return
		}
		scene := server.NewScene()
		var srv *server.Server
		if srv, err = server.NewServer(
			groupCtx,
			appCfg.addr,
			scene,
			tableUpdates,
			learner.Table().ValueTable,
			sprites,
			logger,
		); err != nil {
			return
		}
		group.Go(func() error {
			return srv.Serve(groupCtx)
		})
		renderer = scene
	case RENDER_TERM:
		renderer = terminal.NewRenderer(os.Stdout, true)
	case RENDER_NONE:
		renderer = grid_world.NopRenderer{}
	default:
		return fmt.Errorf("unknown renderer %q, want %s, %s or %s", appCfg.renderer, RENDER_WEB, RENDER_TERM, RENDER_NONE)
	}

	env := grid_world.NewEnvironment(renderer,
		grid_world.WithRenderDelay(appCfg.renderDelay),
		grid_world.WithResetDelay(appCfg.resetDelay),
		grid_world.WithTerminalPolicy(policy))
	defer env.Close()

	trainingCtx, trainingCancel, err := trainCfg.WithTrainingDeadline(groupCtx)
	if err != nil {
		return
	}
	defer trainingCancel()

	logger.Info().
		Str("algorithm", learner.Algorithm()).
		Str("renderer", appCfg.renderer).
		Int("episodes", trainCfg.Episodes).
		Msg("training")

	progress := func(ctx context.Context, result reinforcement.EpisodeResult) {
		logger.Debug().
			Int("episode", result.Episode).
			Int("reward", result.Reward).
			Int("steps", result.Steps).
			Bool("truncated", result.Truncated).
			Msg("episode")
		table := learner.Table().ValueTable()
		publishTable(tableUpdates, table)
		if appCfg.debug {
			grid_world.ShowGrid(os.Stderr, env)
			grid_world.ShowValues(os.Stderr, table)
		}
	}

	group.Go(func() error {
		results, trainErr := reinforcement.Train(trainingCtx, env, learner, trainCfg.Episodes, progress)
		logSummary(logger, results)
		if appCfg.chartPath != "" && len(results) > 0 {
			if chartErr := writeChart(appCfg.chartPath, results); chartErr != nil {
				logger.Error().Err(chartErr).Msg("reward chart")
			}
		}
		if trainErr != nil {
			return fmt.Errorf("train: %w", trainErr)
		}
		if appCfg.renderer == RENDER_WEB && appCtx.Err() == nil {
			logger.Info().Str("addr", appCfg.addr).Msg("training complete, serving until interrupted")
		}
		return nil
	})

	err = group.Wait()
	logger.Info().Msg("stopped")
	return
}

// publishTable replaces any unconsumed table with the latest one, without blocking.
// The caller must be the channel's only sender.
func publishTable(updates chan grid_world.ValueTable, table grid_world.ValueTable) {
	select {
	case <-updates:
	default:
	}
	updates <- table
}

func logSummary(logger zerolog.Logger, results []reinforcement.EpisodeResult) {
	goals, penalties := 0, 0
	for _, result := range results {
		switch result.Reward {
		case grid_world.GOAL_REWARD:
			goals++
		case grid_world.PENALTY_REWARD:
			penalties++
		}
	}
	logger.Info().
		Int("episodes", len(results)).
		Int("goals", goals).
		Int("penalties", penalties).
		Msg("training summary")
}

func writeChart(path string, results []reinforcement.EpisodeResult) (err error) {
	var f *os.File
	if f, err = os.Create(path); err != nil {
		return
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return report.WriteRewardChart(f, results, report.DEFAULT_WINDOW)
}

// execute runs the root command with args, logging a failure to stderr. It returns the exit code.
func execute(stderr io.Writer, args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		logger, _ := newLogger(stderr, zerolog.LevelInfoValue)
		logger.Error().Err(err).Msg("qgrid failed")
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(os.Stderr, os.Args[1:]))
}
