package fcfiledata

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"gopkg.in/ghodss/yaml.v1"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/subsystems"
)

type fileSource struct {
	paths   []string
	loggers ldlog.Loggers
}

// Bootstrap implements subsystems.BootstrapStrategy by loading every configured file.
// The requested namespace set is ignored; the files define what data exists. No cursors
// are produced.
func (f *fileSource) Bootstrap(_ context.Context, _ []string) (subsystems.BootstrapResult, error) {
	families, err := loadAll(f.paths)
	if err != nil {
		return subsystems.BootstrapResult{}, err
	}
	f.loggers.Infof("Loaded %d fig families from %d files", len(families), len(f.paths))
	return subsystems.BootstrapResult{FigFamilies: families}, nil
}

// loadAll reads and parses every file, with later occurrences of the same namespace and
// key replacing earlier ones.
func loadAll(paths []string) ([]fcmodel.FigFamily, error) {
	byKey := make(map[string]int)
	var families []fcmodel.FigFamily
	for _, path := range paths {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		for _, family := range loaded {
			key := family.Namespace + ":" + family.Key
			if i, seen := byKey[key]; seen {
				families[i] = family
				continue
			}
			byKey[key] = len(families)
			families = append(families, family)
		}
	}
	return families, nil
}

func loadFile(path string) ([]fcmodel.FigFamily, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file %s: %w", path, err)
	}
	data := raw
	if !looksLikeJSON(raw) {
		data, err = yaml.YAMLToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing data file %s as YAML: %w", path, err)
		}
	}
	families, err := parseFamilies(data)
	if err != nil {
		return nil, fmt.Errorf("parsing data file %s: %w", path, err)
	}
	return families, nil
}

// parseFamilies accepts either a bare array of families or the fetch response object
// shape, so a captured server response can be replayed from a file unmodified.
func parseFamilies(data []byte) ([]fcmodel.FigFamily, error) {
	if first, ok := firstNonSpace(data); ok && first == '{' {
		resp, err := fcmodel.ParseUpdateFetchResponse(data)
		return resp.FigFamilies, err
	}
	return fcmodel.ParseFigFamilies(data)
}

func looksLikeJSON(data []byte) bool {
	first, ok := firstNonSpace(data)
	return ok && (first == '{' || first == '[')
}

func firstNonSpace(data []byte) (byte, bool) {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b, true
		}
	}
	return 0, false
}

// NullTransport returns a transport that performs no network activity and fails any
// fetch. It satisfies the client configuration's transport requirement when all data
// comes from files.
func NullTransport() subsystems.Transport {
	return nullTransport{}
}

type nullTransport struct{}

func (nullTransport) FetchInitial(context.Context, string, string, string) (fcmodel.InitialFetchResponse, error) {
	return fcmodel.InitialFetchResponse{}, errNullTransport
}

func (nullTransport) FetchUpdates(context.Context, string, string) (fcmodel.UpdateFetchResponse, error) {
	return fcmodel.UpdateFetchResponse{}, errNullTransport
}

func (nullTransport) FetchUpdatesLongPoll(context.Context, string, string, time.Duration) (fcmodel.UpdateFetchResponse, error) {
	return fcmodel.UpdateFetchResponse{}, errNullTransport
}

func (nullTransport) Close() error { return nil }

var errNullTransport = fmt.Errorf("no transport is configured; data comes from files only")
