// Package mysqltest constructs short-lived MariaDB instances for
// unit-testing the store.
package mysqltest

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqlConn = flag.String("sql-conn", "",
	"Connect to a predefined MySQL DSN instead of starting Docker")

// Docker is a test configuration with MariaDB running in a Docker
// container, and a local client authenticated and attached to the DB.
// With the -sql-conn flag the container is skipped and Resource is nil.
type Docker struct {
	Resource *dockertest.Resource
	DB       *sqlx.DB
}

// New connects to the DSN from the -sql-conn flag when one is given,
// and falls back to a Dockerized MariaDB otherwise.
func New(t testing.TB) *Docker {
	if *sqlConn == "" {
		return NewDocker(t)
	}
	cfg, err := mysql.ParseDSN(*sqlConn)
	require.NoError(t, err, "Parsing -sql-conn DSN")
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.ClientFoundRows = true
	t.Log("Connecting to predefined MySQL:", cfg.FormatDSN())
	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	require.NoError(t, err)
	require.NoError(t, db.Ping(), "Connection to predefined MySQL")
	return &Docker{DB: db}
}

// NewDocker creates and starts a Docker test configuration.
// It terminates the test if creation fails.
func NewDocker(t testing.TB) *Docker {
	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Connection to Docker")
	t.Log("Connected to Docker")
	pool.MaxWait = 2 * time.Minute
	var passBytes [16]byte
	_, err = rand.Read(passBytes[:])
	require.NoError(t, err, "Getting random password bytes")
	password := hex.EncodeToString(passBytes[:])
	runOpts := &dockertest.RunOptions{
		Repository: "mariadb",
		Tag:        "10.3-focal",
		Env: []string{
			"MYSQL_DATABASE=calcjobs",
			"MYSQL_USER=root",
			"MYSQL_ROOT_PASSWORD=" + password,
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Creating MariaDB")
	t.Log("Created MariaDB Docker container")
	sqlConfig := mysql.Config{
		User:   "root",
		Passwd: password,
		Net:    "tcp",
		Addr:   "localhost:" + resource.GetPort("3306/tcp"),
		DBName: "calcjobs",

		ParseTime: true,
		Loc:       time.Local,
		// The store distinguishes "no row matched" from "row already
		// carried this value"; matched-rows semantics are required.
		ClientFoundRows:      true,
		AllowNativePasswords: true,
	}
	dsn := sqlConfig.FormatDSN()
	t.Log("Connecting to MySQL:", dsn)
	db, err := sqlx.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Retry(func() error {
		if err := db.Ping(); err != nil {
			t.Log("Ping failed, retrying:", err)
			return err
		}
		return nil
	}), "Connection to MariaDB")
	return &Docker{
		Resource: resource,
		DB:       db,
	}
}

// Close force removes the MariaDB container and destroys all data.
// For a predefined connection only the client is closed.
func (m *Docker) Close(t testing.TB) {
	if m.Resource == nil {
		assert.NoError(t, m.DB.Close(), "Closing client")
		return
	}
	assert.NoError(t, m.Resource.Close(), "Removing container")
}
