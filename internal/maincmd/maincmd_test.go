package maincmd_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/wenyan/internal/config"
	"github.com/mna/wenyan/internal/filetest"
	"github.com/mna/wenyan/internal/xlog"
	"github.com/mna/wenyan/lang/compiler"
	"github.com/mna/wenyan/lang/interner"
	"github.com/mna/wenyan/lang/machine"
	"github.com/mna/wenyan/lang/object"
	"github.com/mna/wenyan/lang/runtime"
)

var updateGolden = flag.Bool("test.update-run-tests", false, "update the .wy.want golden files")

// TestRunGoldenFiles runs every testdata/*.wy source end to end through the
// compiler and the VM, diffing stdout against its .want golden file. These
// are the six end-to-end scenarios worked through by hand elsewhere.
func TestRunGoldenFiles(t *testing.T) {
	files := filetest.SourceFiles(t, "testdata", ".wy")
	require.NotEmpty(t, files)

	for _, fi := range files {
		fi := fi
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("testdata", fi.Name()))
			require.NoError(t, err)

			in := interner.New()
			functions := &object.Table{}
			var compileErrs bytes.Buffer
			topFn, ok := compiler.Compile(src, in, functions, &compileErrs)
			require.True(t, ok, "compile error: %s", compileErrs.String())

			var stdout, stderr bytes.Buffer
			vm := machine.New(&stdout, &stderr, config.DefaultLimits(), xlog.New(&stderr, xlog.LevelWarn))
			rt := runtime.New(in, functions)
			err = vm.Run(rt, topFn)
			require.NoError(t, err, "runtime error: %s", stderr.String())

			filetest.DiffOutput(t, fi, stdout.String(), "testdata", updateGolden)
		})
	}
}
