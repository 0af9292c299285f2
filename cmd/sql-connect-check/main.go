// sql-connect-check builds a Cloud SQL connector, forces a fresh credential
// refresh for one instance, and dials it over TLS. It exists to exercise the
// full credential lifecycle end to end and print what happened, the way an
// operator debugging IAM authentication or a firewall issue would want to
// see it.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/oauth2/google"

	cloudsql "github.com/lstoll/cloudsql-connector"
)

func main() {
	connName := flag.String("instance", os.Getenv("CLOUDSQL_INSTANCE"), "Connection name, e.g. my-project:us-central1:my-db")
	ipType := flag.String("ip-type", defaultEnv("CLOUDSQL_IP_TYPE", "PRIMARY"), "Preferred IP type: PRIMARY, PRIVATE, or PUBLIC")
	iamAuthN := flag.Bool("iam-authn", os.Getenv("CLOUDSQL_IAM_AUTHN") == "1", "Use IAM database authentication (Application Default Credentials)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout for the check")
	flag.Parse()

	if *connName == "" {
		fmt.Fprintln(os.Stderr, "-instance (or CLOUDSQL_INSTANCE) is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *connName, *ipType, *iamAuthN); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, connName, ipType string, iamAuthN bool) error {
	var opts []cloudsql.Option
	if iamAuthN {
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/sqlservice.admin")
		if err != nil {
			return fmt.Errorf("find default credentials: %w", err)
		}
		opts = append(opts, cloudsql.WithIAMAuthN(cloudsql.NewOAuth2CredentialsSource(creds.TokenSource)))
	}

	dialer, err := cloudsql.NewDialer(ctx, opts...)
	if err != nil {
		return fmt.Errorf("new dialer: %w", err)
	}
	defer dialer.Close()

	inst, err := dialer.Instance(ctx, connName)
	if err != nil {
		return fmt.Errorf("resolve instance %q: %w", connName, err)
	}

	// ForceRefresh always returns true; a failed refresh surfaces on the
	// PreferredIP call below.
	inst.ForceRefresh()

	ip, err := inst.PreferredIP(ctx, []string{ipType})
	if err != nil {
		return fmt.Errorf("preferred IP: %w", err)
	}
	fmt.Printf("resolved %s -> %s (%s)\n", connName, ip, ipType)

	sock, err := inst.CreateSSLSocket(ctx)
	if err != nil {
		return fmt.Errorf("create ssl socket: %w", err)
	}
	conn, err := sock.Dial(ctx, "tcp", net.JoinHostPort(ip, "3307"))
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	printConnState(conn.ConnectionState())

	stats := inst.Stats()
	fmt.Printf("refreshes: count=%d last success=%s last error=%v\n", stats.RefreshCount, stats.LastSuccess, stats.LastError)

	return nil
}

func printConnState(state tls.ConnectionState) {
	fmt.Printf("tls version: %s\n", tlsVersionName(state.Version))
	if len(state.PeerCertificates) > 0 {
		fmt.Printf("peer cert subject: %s\n", state.PeerCertificates[0].Subject)
	}
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS13:
		return "TLS 1.3"
	case tls.VersionTLS12:
		return "TLS 1.2"
	default:
		return fmt.Sprintf("0x%04x", v)
	}
}
