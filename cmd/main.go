package main

import (
	"log"
	"os"

	_ "net/http/pprof"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

var storeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:      "input",
		Aliases:   []string{"i"},
		Usage:     "osm.pbf file loaded into memory, takes precedence over the database",
		TakesFile: true,
	},
	&cli.StringFlag{
		Name:  "database-url",
		Usage: "PostGIS connection url (env OSMGAZ_DATABASE_URL)",
	},
	&cli.StringFlag{
		Name:  "redis-addr",
		Usage: "redis address for memos and the result cache (env OSMGAZ_REDIS_ADDR)",
	},
	&cli.StringFlag{
		Name:      "ontology",
		Usage:     "ontology document, the embedded one when empty (env OSMGAZ_ONTOLOGY)",
		TakesFile: true,
	},
	&cli.StringFlag{
		Name:      "env-file",
		Value:     ".env",
		TakesFile: true,
	},
	&cli.IntFlag{
		Name:        "threads",
		Aliases:     []string{"t"},
		DefaultText: "max",
	},
}

func withStoreFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, storeFlags...), flags...)
}

func main() {
	app := &cli.App{
		Name:        "osmgaz",
		Description: "Reverse gazetteer over OpenStreetMap toponyms",
		Commands: []*cli.Command{
			{
				Name:  "resolve",
				Usage: "resolve a single lon/lat point and print the result as json",
				Flags: withStoreFlags(
					&cli.StringFlag{Name: "lon", Required: true},
					&cli.StringFlag{Name: "lat", Required: true},
					&cli.BoolFlag{Name: "progress", Usage: "print pipeline stages to stderr"},
				),
				Action: resolve,
			},
			{
				Name:  "serve",
				Usage: "serve the toponym http api",
				Flags: withStoreFlags(
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen address (env OSMGAZ_LISTEN)",
					},
				),
				Action: serve,
			},
			{
				Name:    "preprocess",
				Aliases: []string{"p"},
				Usage:   "classify features and precompute name and type salience",
				Flags: withStoreFlags(
					&cli.BoolFlag{
						Name:  "full",
						Usage: "reclassify features that already have a type",
					},
					&cli.StringFlag{
						Name:      "unknown",
						Usage:     "file receiving unrecognized tag sets as json lines",
						Value:     "unknown.jsonl",
						TakesFile: true,
					},
					&cli.BoolFlag{
						Name:  "skip-salience",
						Usage: "only classify",
					},
					&cli.StringFlag{
						Name:      "stats",
						Usage:     "write a runtime stats report to this file",
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.profile",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.heap",
						DefaultText: "",
					},
				),
				Action: preprocessCmd,
			},
			{
				Name:  "warmup",
				Usage: "resolve poisson-disc sampled points inside an area into the result cache",
				Flags: withStoreFlags(
					&cli.StringFlag{
						Name:  "area",
						Usage: "WGS84 polygon or multipolygon as WKT",
					},
					&cli.StringFlag{
						Name:  "bbox",
						Usage: "min_lon,min_lat,max_lon,max_lat",
					},
					&cli.StringFlag{
						Name:  "distance",
						Usage: "minimum distance between samples in meters",
						Value: "500",
					},
					&cli.IntFlag{
						Name:  "seed",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "skip-errors",
						Usage: "keep going when a point fails",
					},
				),
				Action: warmup,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "database-url",
						Usage: "PostGIS connection url (env OSMGAZ_DATABASE_URL)",
					},
					&cli.StringFlag{
						Name:      "env-file",
						Value:     ".env",
						TakesFile: true,
					},
				},
				Action: migrate,
			},
			{
				Name:  "rules",
				Usage: "print the flattened classification rules as json lines",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "ontology",
						TakesFile: true,
					},
				},
				Action: rules,
			},
			{
				Name:  "snapshot-export",
				Usage: "write the result cache to a snapshot file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "output",
						Aliases:   []string{"o"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "free form description of the data the cache was built from",
					},
					&cli.StringFlag{Name: "database-url"},
					&cli.StringFlag{Name: "redis-addr"},
					&cli.StringFlag{Name: "env-file", Value: ".env", TakesFile: true},
				},
				Action: snapshotExport,
			},
			{
				Name:  "snapshot-import",
				Usage: "load a snapshot file into the result cache",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "snapshot",
						Aliases:   []string{"s"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{Name: "database-url"},
					&cli.StringFlag{Name: "redis-addr"},
					&cli.StringFlag{Name: "env-file", Value: ".env", TakesFile: true},
				},
				Action: snapshotImport,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
