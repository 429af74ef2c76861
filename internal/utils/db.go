package utils

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"

	"toilet-finder/internal/config"
)

// BuildPostgresDSN：由配置拼接 lib/pq 连接串；连接超时以秒计，至少 1 秒
func BuildPostgresDSN(c config.Postgres) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.DB,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	q.Set("sslmode", ssl)
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenPostgres：打开连接池并按配置设置上限；不在此处 Ping
func OpenPostgres(c config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSN(c))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}
	return db, nil
}
