package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs_SeparateValue(t *testing.T) {
	args := []string{"-d", "postgres://x", "-z", "ignored", "-s", "secret"}
	got := FilterArgs(args, []string{"-d", "-s"})
	assert.Equal(t, []string{"-d", "postgres://x", "-s", "secret"}, got)
}

func TestFilterArgs_EqualsForm(t *testing.T) {
	args := []string{"--config=conf.json", "--other=nope", "-a=:8000"}
	got := FilterArgs(args, []string{"--config", "-a"})
	assert.Equal(t, []string{"--config=conf.json", "-a=:8000"}, got)
}

func TestFilterArgs_FlagFollowedByFlag(t *testing.T) {
	// A boolean-style flag followed by another flag must not consume it
	// as a value.
	args := []string{"-v", "-d", "dsn"}
	got := FilterArgs(args, []string{"-v", "-d"})
	assert.Equal(t, []string{"-v", "-d", "dsn"}, got)
}

func TestFilterArgs_Empty(t *testing.T) {
	got := FilterArgs(nil, []string{"-a"})
	assert.Empty(t, got)
}

func TestJsonConfigFlags(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"test", "-c", "conf.json", "-a", ":8000"}
	assert.Equal(t, "conf.json", JsonConfigFlags())

	os.Args = []string{"test", "--config=other.json"}
	assert.Equal(t, "other.json", JsonConfigFlags())

	os.Args = []string{"test", "-a", ":8000"}
	assert.Equal(t, "", JsonConfigFlags())
}
