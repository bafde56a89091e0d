// Package preflight verifies external dependencies before a job starts:
// required tools on PATH and, for remote services, TLS reachability of the
// provider.
package preflight

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
	"github.com/rasata/transcription-mp3-to-text/internal/media"
)

const dialTimeout = 5 * time.Second

// providerHosts maps remote services to the endpoint checked by the TLS
// preflight.
var providerHosts = map[string]string{
	config.ServiceAssemblyAI: "api.assemblyai.com:443",
	config.ServiceOpenAI:     "api.openai.com:443",
}

// Run checks that the configured pipeline can actually run. Missing tools
// are fatal. TLS problems only produce guidance; the request may still
// succeed through a proxy, so the job is allowed to try.
func Run(ctx context.Context, cfg *config.Config, skipTLS bool, log *logging.Logger) error {
	tools := []string{"ffmpeg"}
	if cfg.Service == config.ServiceLocal {
		tools = append(tools, "whisper")
	}
	if err := media.EnsureTools(tools...); err != nil {
		return err
	}

	host, remote := providerHosts[cfg.Service]
	if !remote || skipTLS {
		return nil
	}

	if err := checkTLS(ctx, host); err != nil {
		var certErr *tls.CertificateVerificationError
		if errors.As(err, &certErr) {
			log.Warn("certificate verification failed for provider host",
				"host", host,
				"error", err,
				"hint", "update the system CA bundle (ca-certificates) or set SSL_CERT_FILE; -no-ssl-fix skips this check")
		} else {
			log.Warn("could not reach provider host", "host", host, "error", err)
		}
		return nil
	}
	log.Debug("tls preflight ok", "host", host)
	return nil
}

// checkTLS performs a full TLS handshake against host.
func checkTLS(ctx context.Context, host string) error {
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: dialTimeout}}
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return err
	}
	return conn.Close()
}
