package staging

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BundleFile is the code dependency archive inside a staging directory.
const BundleFile = "packages.tar"

// BundleModules tars the declared module directories into dir/packages.tar
// so the compute node can run without the submitting host's code layout.
func BundleModules(dir string, modules []string) error {
	out, err := os.Create(filepath.Join(dir, BundleFile))
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}
	defer out.Close()

	tw := tar.NewWriter(out)
	defer tw.Close()

	for _, module := range modules {
		if err := addTree(tw, module); err != nil {
			return fmt.Errorf("bundling module %s: %w", module, err)
		}
	}
	return nil
}

// addTree walks a module directory and writes every regular file into the
// archive under the module's base name.
func addTree(tw *tar.Writer, root string) error {
	base := filepath.Base(root)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(base, rel))
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
}
