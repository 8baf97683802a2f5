// Package malha fetches municipal boundaries from the IBGE malha municipal
// shapefiles published on the geoftp server, as an offline-friendly
// alternative to geocoding.
package malha

import (
	"archive/zip"
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// downloadFTP retrieves an ftp:// URL to a local file.
func downloadFTP(ctx context.Context, rawURL, destPath string, timeout time.Duration) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrap(err, "malha: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return eris.Errorf("malha: expected ftp scheme, got %q", u.Scheme)
	}

	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	zap.L().Debug("malha: ftp download", zap.String("host", host), zap.String("path", u.Path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "malha: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return eris.Wrap(err, "malha: ftp login")
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return eris.Wrapf(err, "malha: ftp retrieve %s", u.Path)
	}
	defer resp.Close() //nolint:errcheck

	file, err := os.Create(destPath)
	if err != nil {
		return eris.Wrap(err, "malha: create download file")
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, resp); err != nil {
		return eris.Wrap(err, "malha: write download file")
	}
	return nil
}

// extractZip unpacks an archive into destDir and returns the path of the
// contained .shp file.
func extractZip(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "malha: open zip %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var shpPath string
	for _, f := range r.File {
		name := filepath.Base(f.Name)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		outPath := filepath.Join(destDir, name)

		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrapf(err, "malha: open zip entry %s", f.Name)
		}
		out, err := os.Create(outPath)
		if err != nil {
			rc.Close()
			return "", eris.Wrapf(err, "malha: create extracted file %s", outPath)
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return "", eris.Wrapf(err, "malha: extract %s", f.Name)
		}

		if strings.EqualFold(filepath.Ext(name), ".shp") {
			shpPath = outPath
		}
	}

	if shpPath == "" {
		return "", eris.Errorf("malha: no .shp entry in %s", zipPath)
	}
	return shpPath, nil
}
