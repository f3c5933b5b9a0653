package main

import (
	"flag"
	"log"

	"github.com/danmuck/chunkwalk/internal/config"
)

func defaultPath(kind string) string {
	switch kind {
	case "chunkctl":
		return "cmd/chunkctl/chunkctl.toml"
	case "layouts":
		return "cmd/chunkctl/layouts.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

func main() {
	kind := flag.String("kind", "chunkctl", "config kind: chunkctl|layouts")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case "chunkctl":
			if _, err := config.LoadWalkConfig(path); err != nil {
				log.Fatal(err)
			}
		case "layouts":
			layouts, err := config.LoadLayouts(path)
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("%d layouts defined", len(layouts))
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
