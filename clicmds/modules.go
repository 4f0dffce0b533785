package clicmds

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/trawler/scanner"
	"gitlab.com/trawler/scanner/modules"
	"gitlab.com/trawler/transport"
	"gitlab.com/trawler/trawl"
)

// Modules lists the registered modules and presets
func Modules(ctx *cli.Context) error {
	return listModules(os.Stdout, modules.Registry())
}

func listModules(out io.Writer, catalog *modules.Catalog) error {
	infos := make([]*trawl.ModuleOpts, 0)
	names := catalog.Names()
	for _, name := range names {
		factory, _ := catalog.Factory(name)
		infos = append(infos, factory(&trawl.ModuleContext{}).Options())
	}

	fmt.Fprintln(out, "Modules:")
	for i, name := range names {
		opts := infos[i]
		methods := make([]string, 0, 2)
		if opts.DoGet {
			methods = append(methods, "get")
		}
		if opts.DoPost {
			methods = append(methods, "post")
		}
		line := fmt.Sprintf("  %-14s priority %-3d %s", name, opts.Priority, strings.Join(methods, ","))
		if len(opts.Require) > 0 {
			line += " requires " + strings.Join(opts.Require, ",")
		}
		fmt.Fprintln(out, line)
	}

	presets := []string{modules.PresetCommon, modules.PresetPassive, modules.PresetAll}
	sort.Strings(presets)
	fmt.Fprintln(out, "Presets:")
	for _, preset := range presets {
		members, _ := catalog.Preset(preset)
		fmt.Fprintf(out, "  %-14s %s\n", preset, strings.Join(members, ","))
	}
	return nil
}

// UpdateFlags for the update command
func UpdateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "modules",
			Aliases: []string{"m"},
			Usage:   "modules to update",
			Value:   modules.PresetAll,
		},
		&cli.StringFlag{
			Name:  "datadir",
			Usage: "data directory holding module data",
			Value: trawl.DefaultDataPath,
		},
		&cli.StringSliceFlag{
			Name:  "module-option",
			Usage: "module.key=value passed to a module",
		},
		&cli.StringFlag{
			Name:  "proxy",
			Usage: "http(s) or socks5 proxy url",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "toml config to use, flags override it",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
		},
	}
}

// Update refreshes the data files of the selected modules
func Update(ctx *cli.Context) error {
	setupLogging(ctx)
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return err
	}
	catalog := modules.Registry()
	selection, err := scanner.ParseSelection(cfg.Modules, catalog)
	if err != nil {
		return err
	}
	tr, err := transport.New(transport.ConfigFrom(cfg))
	if err != nil {
		return err
	}
	err = scanner.UpdateModules(ctx.Context, catalog, selection, &scanner.ModuleEnv{
		Transport: tr,
		Options:   cfg.ModuleOptions,
		DataPath:  cfg.DataPath,
	})
	if err != nil {
		return err
	}
	log.Info().Strs("modules", selection.Names()).Msg("update done")
	return nil
}
