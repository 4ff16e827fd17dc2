// stitchopt - runs the incremental method optimizer over a linking unit
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/stitch/cache"
	"github.com/chazu/stitch/ir"
	"github.com/chazu/stitch/manifest"
	"github.com/chazu/stitch/optimizer"
	"github.com/chazu/stitch/wire"
)

func main() {
	inPath := flag.String("in", "", "Input linking unit (CBOR)")
	outPath := flag.String("out", "", "Output linking unit (CBOR); defaults to <in>.opt")
	projectDir := flag.String("project", "", "Project directory containing stitch.toml")
	verbosity := flag.Int("v", 0, "Log verbosity (0-2)")
	noCache := flag.Bool("no-cache", false, "Skip the persistent optimized-method cache")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stitchopt -in UNIT [options]\n\n")
		fmt.Fprintf(os.Stderr, "Optimizes every method body of a linking unit.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stitchopt -in app.unit                   # writes app.unit.opt\n")
		fmt.Fprintf(os.Stderr, "  stitchopt -in app.unit -project ./app    # settings from app/stitch.toml\n")
	}
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *outPath == "" {
		*outPath = *inPath + ".opt"
	}

	commonlog.Configure(*verbosity, nil)
	logger := commonlog.GetLogger("stitchopt")

	m := manifest.Default()
	if *projectDir != "" {
		loaded, err := manifest.Load(*projectDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		m = loaded
	}

	data, err := os.ReadFile(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading unit: %v\n", err)
		os.Exit(1)
	}
	unit, err := wire.UnmarshalUnit(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding unit: %v\n", err)
		os.Exit(1)
	}

	opt := optimizer.NewIncOptimizer(nil, optimizer.Config{
		Parallel: m.Optimizer.Parallel,
		Workers:  m.Optimizer.Workers,
	})
	optimized := opt.Update(unit, logger)

	if m.Cache.Enabled && !*noCache {
		if err := persistToCache(m, unit, optimized); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache update failed: %v\n", err)
		}
	}

	out, err := wire.MarshalUnit(optimized)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding unit: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing unit: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("optimized %d classes into %s", len(optimized.Classes), *outPath)
}

// persistToCache stores each optimized method keyed by the input version it
// was derived from, so future processes can reuse it.
func persistToCache(m *manifest.Manifest, input, optimized *ir.LinkingUnit) error {
	path := m.Cache.Path
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	inputVersions := make(map[string]string)
	for _, lc := range input.Classes {
		for _, vdef := range lc.Methods {
			key := lc.EncodedName + "/" + vdef.Value.EncodedName
			inputVersions[key] = vdef.Version
		}
	}

	for _, lc := range optimized.Classes {
		for _, vdef := range lc.Methods {
			def := vdef.Value
			if def.Body == nil {
				continue
			}
			entry := &cache.Entry{
				ClassName:  lc.EncodedName,
				Namespace:  int(def.Flags.Namespace),
				MethodName: def.EncodedName,
				InVersion:  inputVersions[lc.EncodedName+"/"+def.EncodedName],
				OutVersion: vdef.Version,
				Body:       wire.MarshalMethodBody(def.Body),
			}
			if entry.InVersion == "" {
				continue
			}
			if err := store.Put(entry); err != nil {
				return err
			}
		}
	}
	return nil
}
