package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/trawler/clicmds"
)

func main() {
	app := cli.NewApp()
	app.Name = "trawler"
	app.Version = "0.1"
	app.Usage = "crawl a web application and probe it for vulnerabilities"
	app.Commands = []*cli.Command{
		{
			Name:    "scan",
			Aliases: []string{"s"},
			Usage:   "crawl, attack and report",
			Action:  clicmds.Scan,
			Flags:   clicmds.ScanFlags(),
		},
		{
			Name:   "modules",
			Usage:  "list modules and presets",
			Action: clicmds.Modules,
		},
		{
			Name:   "update",
			Usage:  "refresh module data files",
			Action: clicmds.Update,
			Flags:  clicmds.UpdateFlags(),
		},
		{
			Name:   "dbview",
			Usage:  "print what a scan stored",
			Action: clicmds.DBView,
			Flags:  clicmds.DBViewFlags(),
		},
		{
			Name:   "sitemap",
			Usage:  "print the links found by a scan as a tree",
			Action: clicmds.Sitemap,
			Flags:  clicmds.SitemapFlags(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("trawler failed")
		os.Exit(clicmds.ExitCode(err))
	}
}
