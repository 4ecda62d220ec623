package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"modcore/internal/applog"
	"modcore/internal/deploy"
	"modcore/internal/gamecfg"
	"modcore/internal/modindex"
	"modcore/internal/profile"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// CLIConfig captures every resolved persistent flag before a subcommand
// builds a profile.Profile from it.
type CLIConfig struct {
	ProfileDir  string
	StagingRoot string
	DestDir     string
	GamesPath   string
	Game        string
	RootDir     string
	LinkMode    string
	Quiet       bool
}

var rootCmd = &cobra.Command{
	Use:   "modcore [ROOT_DIR]",
	Short: "Deploys and restores a prioritised mod list into a game install",
	Long:  `A cross-game mod deployment core: conflict resolution, mod indexing, link-based deployment, and restore.`,
	Args:  cobra.ArbitraryArgs,
}

// Execute initializes the root command tree and delegates to Cobra for
// argument parsing and subcommand dispatch.
func Execute() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != "" {
		pterm.DisableStyling()
		pterm.RawOutput = true
	}
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("profile", "p", "", "Path to the profile directory (modlist.txt, modindex.txt, backups)")
	rootCmd.PersistentFlags().StringP("staging", "s", "", "Path to the staging root containing mod subfolders")
	rootCmd.PersistentFlags().StringP("dest", "d", "", "Path to the deploy destination (data dir or game root)")
	rootCmd.PersistentFlags().String("games", "", "Path to games.yaml (defaults to <profile>/games.yaml)")
	rootCmd.PersistentFlags().StringP("game", "g", "", "Name of the game entry in games.yaml to use")
	rootCmd.PersistentFlags().String("link-mode", "hardlink", "Deploy link strategy: hardlink, symlink, or copy")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational log lines")
}

func parseConfig(cmd *cobra.Command, args []string) CLIConfig {
	cfg := CLIConfig{}
	cfg.ProfileDir, _ = cmd.Flags().GetString("profile")
	cfg.StagingRoot, _ = cmd.Flags().GetString("staging")
	cfg.DestDir, _ = cmd.Flags().GetString("dest")
	cfg.GamesPath, _ = cmd.Flags().GetString("games")
	cfg.Game, _ = cmd.Flags().GetString("game")
	cfg.LinkMode, _ = cmd.Flags().GetString("link-mode")
	cfg.Quiet, _ = cmd.Flags().GetBool("quiet")
	if len(args) > 0 {
		cfg.RootDir = args[0]
	}
	return cfg
}

// resolvePaths applies the path inference logic, deriving profileDir and
// stagingRoot from a root directory positional argument when explicit
// flags are absent.
func resolvePaths(cfg CLIConfig) (profileDir, stagingRoot string, err error) {
	rd := cfg.RootDir
	pd := cfg.ProfileDir
	sr := cfg.StagingRoot

	if rd != "" {
		if pd == "" {
			pd = filepath.Join(rd, "profile")
		}
		if sr == "" {
			sr = filepath.Join(rd, "mods")
		}
	}

	if pd == "" || sr == "" {
		return "", "", fmt.Errorf("must specify either a ROOT_DIR positional argument, or both --profile and --staging")
	}

	return pd, sr, nil
}

// buildProfile resolves paths and game configuration from CLI args/flags
// and constructs a profile.Profile ready for deploy/restore/index/filemap
// operations.
func buildProfile(cfg CLIConfig) (*profile.Profile, error) {
	profileDir, stagingRoot, err := resolvePaths(cfg)
	if err != nil {
		return nil, err
	}

	gamesPath := cfg.GamesPath
	if gamesPath == "" {
		gamesPath = filepath.Join(profileDir, "games.yaml")
	}
	reg, err := gamecfg.Load(gamesPath)
	if err != nil {
		return nil, fmt.Errorf("loading game configuration: %w", err)
	}
	if cfg.Game == "" {
		return nil, fmt.Errorf("must specify --game (available: %v)", reg.Names())
	}
	game, ok := reg.Get(cfg.Game)
	if !ok {
		return nil, fmt.Errorf("unknown game %q (available: %v)", cfg.Game, reg.Names())
	}

	destDir := cfg.DestDir
	if destDir == "" {
		destDir = game.DataDir
	}

	p := profile.New(profileDir, stagingRoot, destDir, game, modindex.NewCache())
	p.Log = applog.Sink{Quiet: cfg.Quiet}
	return p, nil
}

func parseLinkMode(name string) (deploy.LinkMode, error) {
	switch name {
	case "hardlink", "":
		return deploy.Hardlink, nil
	case "symlink":
		return deploy.Symlink, nil
	case "copy":
		return deploy.Copy, nil
	default:
		return 0, fmt.Errorf("unknown --link-mode %q (want hardlink, symlink, or copy)", name)
	}
}
