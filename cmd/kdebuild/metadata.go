package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/kdebuilder/kdebuilder/internal/depgraph"
	"github.com/kdebuilder/kdebuilder/internal/kdeprojects"
	"github.com/kdebuilder/kdebuilder/internal/metadatasrc"
)

const defaultMetadataRepoURL = "kde:sysadmin/repo-metadata.git"

// metadataBundle is everything fetched from the kde-projects metadata
// checkout that the resolver and dependency graph need.
type metadataBundle struct {
	reader *kdeprojects.Reader
	data   *depgraph.Data
	groups *kdeprojects.BranchGroupResolver
}

// fetchMetadata downloads (or reuses a local copy of) the kde-projects
// repo-metadata checkout and parses the pieces this run needs: the
// per-project database, the branch-group policy and every dependency-
// data file under dependencies/.
func fetchMetadata(ctx context.Context, dir, repoURL string, pretend bool) (*metadataBundle, []string, error) {
	var warnings []string

	hasLocal := func() bool {
		_, err := os.Stat(filepath.Join(dir, "projects"))
		return err == nil
	}

	if !pretend {
		fetched, err := metadatasrc.Update(ctx, metadatasrc.GetterFetcher{}, repoURL, dir, hasLocal, metadatasrc.Options{})
		if err != nil {
			return nil, warnings, err
		}
		if !fetched {
			warnings = append(warnings, "kde-projects metadata download failed; continuing with the local copy")
		}
	} else if !hasLocal() {
		warnings = append(warnings, "no local kde-projects metadata and --pretend forbids fetching it; module-set expansion will be empty")
	}

	bundle := &metadataBundle{data: &depgraph.Data{}}

	if hasLocal() {
		reader, err := kdeprojects.NewReader(dir)
		if err != nil {
			warnings = append(warnings, "reading kde-projects metadata: "+err.Error())
		} else {
			bundle.reader = reader
		}

		if b, err := os.ReadFile(filepath.Join(dir, "dependencies", "logical-module-structure.json")); err == nil {
			if groups, err := kdeprojects.NewBranchGroupResolver(b); err == nil {
				bundle.groups = groups
			}
		}

		depDir := filepath.Join(dir, "dependencies")
		entries, _ := os.ReadDir(depDir)
		var parseErrs *multierror.Error
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			full := filepath.Join(depDir, name)
			switch {
			case strings.HasPrefix(name, "dependency-data-"):
				b, err := os.ReadFile(full)
				if err != nil {
					parseErrs = multierror.Append(parseErrs, err)
					continue
				}
				d, _, err := depgraph.ParseLegacy(string(b))
				if err != nil {
					parseErrs = multierror.Append(parseErrs, err)
					continue
				}
				bundle.data.Merge(d)
			case strings.HasPrefix(name, "dependencies_v2-") && strings.HasSuffix(name, ".json"):
				b, err := os.ReadFile(full)
				if err != nil {
					parseErrs = multierror.Append(parseErrs, err)
					continue
				}
				d, err := depgraph.ParseV2(b)
				if err != nil {
					parseErrs = multierror.Append(parseErrs, err)
					continue
				}
				bundle.data.Merge(d)
			}
		}
		// A bad dependency-data file is not fatal — the graph just runs
		// without that file's edges — but it is worth surfacing once
		// instead of swallowing each error individually.
		if parseErrs.ErrorOrNil() != nil {
			warnings = append(warnings, "some dependency-data files were skipped: "+parseErrs.Error())
		}
	}

	return bundle, warnings, nil
}
