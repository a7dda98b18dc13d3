package postgresql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "explicit sslmode",
			cfg:  Config{Host: "db", Port: 5432, User: "genjob", Password: "secret", Database: "genjob_db", SSLMode: "require"},
			want: "host=db port=5432 user=genjob password=secret dbname=genjob_db sslmode=require",
		},
		{
			name: "sslmode defaults to disable",
			cfg:  Config{Host: "localhost", Port: 5433, User: "u", Password: "p", Database: "d"},
			want: "host=localhost port=5433 user=u password=p dbname=d sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
