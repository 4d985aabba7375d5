// Package fcfiledata reads FigChain configuration from local files instead of the
// network, for development and testing.
//
// Files may be JSON or YAML, each holding either a plain array of fig families or an
// object with a "figFamilies" property. The same builder serves both client slots: as
// the bootstrap strategy it loads the files once, and as the polling strategy it watches
// them and republishes on every change.
//
//	config := fcclient.Config{
//	    Namespaces: []string{"billing"},
//	    Transport:  fcfiledata.NullTransport(),
//	    Bootstrap:  fcfiledata.DataSource().FilePaths("./testdata/figs.yaml"),
//	    Polling:    fcfiledata.DataSource().FilePaths("./testdata/figs.yaml"),
//	}
package fcfiledata

import (
	"errors"

	"github.com/figchain/go-client-sdk/subsystems"
)

// DataSourceBuilder configures a file-based data source. Obtain one from DataSource and
// store it in the Bootstrap and/or Polling fields of the client configuration.
type DataSourceBuilder struct {
	filePaths []string
}

// DataSource returns a configurable builder for a file-based data source.
func DataSource() *DataSourceBuilder {
	return &DataSourceBuilder{}
}

// FilePaths adds input data files. The paths may be any number of absolute or relative
// file paths. When the same namespace and key appear in more than one file, the last
// occurrence wins.
func (b *DataSourceBuilder) FilePaths(paths ...string) *DataSourceBuilder {
	b.filePaths = append(b.filePaths, paths...)
	return b
}

// CreateBootstrapStrategy is called by the client to create the strategy instance.
//
// The file source yields no cursors, so file-loaded namespaces are not eligible for
// network polling; pair it with the file watcher or leave the data static.
func (b *DataSourceBuilder) CreateBootstrapStrategy(
	context subsystems.ClientContext,
) (subsystems.BootstrapStrategy, error) {
	if len(b.filePaths) == 0 {
		return nil, errors.New("no file paths configured")
	}
	return &fileSource{paths: b.filePaths, loggers: context.Loggers}, nil
}

// CreatePollingStrategy is called by the client to create the strategy instance.
func (b *DataSourceBuilder) CreatePollingStrategy(
	context subsystems.ClientContext,
	sink subsystems.UpdateSink,
	_ *subsystems.CursorMap,
) (subsystems.PollingStrategy, error) {
	if len(b.filePaths) == 0 {
		return nil, errors.New("no file paths configured")
	}
	return newFileWatchStrategy(b.filePaths, sink, context.Loggers), nil
}
