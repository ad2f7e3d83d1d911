package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		user, pass string
		want       string
	}{
		{
			name: "native dsn untouched",
			in:   "u:p@tcp(db:3306)/users?parseTime=true",
			want: "u:p@tcp(db:3306)/users?parseTime=true",
		},
		{
			name: "url form gets defaults",
			in:   "mysql://u:p@db:3306/users",
			want: "u:p@tcp(db:3306)/users?charset=utf8mb4&parseTime=true",
		},
		{
			name: "jdbc params translated",
			in:   "jdbc:mysql://db:3306/users?useUnicode=true&characterEncoding=latin1&useSSL=false&serverTimezone=UTC",
			user: "svc", pass: "secret",
			want: "svc:secret@tcp(db:3306)/users?charset=latin1&loc=UTC&parseTime=true&tls=false",
		},
		{
			name: "credentials from query",
			in:   "mysql://db:3306/users?user=q&password=w",
			want: "q:w@tcp(db:3306)/users?charset=utf8mb4&parseTime=true",
		},
		{
			name: "empty",
			in:   "  ",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMySQLDSN(tt.in, tt.user, tt.pass))
		})
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "u:****@tcp(db:3306)/users", maskDSN("u:p@tcp(db:3306)/users"))
	assert.Equal(t, "tcp(db:3306)/users", maskDSN("tcp(db:3306)/users"))
	assert.Equal(t, "u@tcp(db)/x", maskDSN("u@tcp(db)/x"))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, logLevel("silent"))
	assert.Equal(t, logger.Info, logLevel("info"))
	assert.Equal(t, logger.Warn, logLevel(""))
}

func TestNewGorm_UnsupportedDriver(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
