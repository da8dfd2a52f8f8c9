package main

import (
	"flag"
	"log"

	"github.com/danmuck/jvsctl/internal/config"
)

func defaultPath(kind string) string {
	switch kind {
	case "jvsd":
		return "cmd/jvsd/config.toml"
	case "profile":
		return "jvsctl.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

func main() {
	kind := flag.String("kind", "jvsd", "config kind: jvsd|profile")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	show := flag.Bool("show", false, "print the effective jvsd config after validation")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case "jvsd":
			cfg, err := config.LoadDaemonConfig(path)
			if err != nil {
				log.Fatal(err)
			}
			if _, err := config.ServiceConfig(cfg); err != nil {
				log.Fatal(err)
			}
			if *show {
				out, err := config.Marshal(cfg)
				if err != nil {
					log.Fatal(err)
				}
				log.Printf("effective config:\n%s", out)
			}
		case "profile":
			if _, err := config.LoadProfile(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
