package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/manifest"
)

type Mailer struct{ Host string }

func NewMailer() *Mailer { return &Mailer{Host: "smtp.local"} }

func TestLoadFile_AndApply(t *testing.T) {
	m, err := manifest.LoadFile("testdata/services.yaml")
	require.NoError(t, err)
	require.Len(t, m.Services, 4)

	c := container.New()
	require.NoError(t, m.Apply(c))

	assert.Equal(t, "demo", container.MustResolve[string](c, "name"))
	protected, err := c.IsProtected("app.name")
	require.NoError(t, err)
	assert.True(t, protected)

	greeting := container.MustResolve[map[string]any](c, "greeting")
	assert.Equal(t, "hello", greeting["text"])
	assert.Equal(t, 3, container.MustResolve[int](c, "retries"))

	shared, err := c.IsShared("ports")
	require.NoError(t, err)
	assert.True(t, shared)

	tagged, err := c.Tagged("strings")
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, "demo", tagged[0])
}

func TestParse_EmptyDocument(t *testing.T) {
	m, err := manifest.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, m.Services)
	assert.NoError(t, m.Validate())
}

func TestParse_UnknownField(t *testing.T) {
	_, err := manifest.Parse([]byte("services:\n  - key: a\n    valeu: 1\n"))
	assert.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := manifest.Parse([]byte("services: [\n"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	_, err := manifest.LoadFile("testdata/invalid.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, manifest.ErrInvalid)

	msg := err.Error()
	for _, want := range []string{
		"services[0]",
		"has both a value and a class",
		"already declared by services[1]",
		"[empty] needs a value or a class",
		"aliases.self",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_Tags(t *testing.T) {
	m := &manifest.Manifest{Tags: map[string][]string{"ok": {"a"}, "bad tag": {"b"}, "empty": {""}}}
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tags.bad tag[0]")
	assert.Contains(t, err.Error(), "tags.empty[0]")
	assert.NotContains(t, err.Error(), "tags.ok")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := manifest.LoadFile("testdata/nope.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApply_InvalidManifestRegistersNothing(t *testing.T) {
	m := &manifest.Manifest{Services: []manifest.Service{{Key: "ok", Value: 1}, {Key: ""}}}
	c := container.New()
	assert.ErrorIs(t, m.Apply(c), manifest.ErrInvalid)
	assert.False(t, c.Has("ok"))
}

func TestApply_ClassIsAutowired(t *testing.T) {
	c := container.New()
	class, err := c.Classes().Constructor(NewMailer)
	require.NoError(t, err)

	m := &manifest.Manifest{Services: []manifest.Service{{Key: "mailer", Class: class, Shared: true}}}
	require.NoError(t, m.Apply(c))

	a := container.MustResolve[*Mailer](c, "mailer")
	b := container.MustResolve[*Mailer](c, "mailer")
	assert.Same(t, a, b)
	assert.Equal(t, "smtp.local", a.Host)
}

func TestApply_KeyNamedAfterItsClass(t *testing.T) {
	c := container.New()
	class, err := c.Classes().Constructor(NewMailer)
	require.NoError(t, err)

	m := &manifest.Manifest{Services: []manifest.Service{{Key: class, Class: class, Shared: true}}}
	require.NoError(t, m.Apply(c))

	a, err := container.Resolve[*Mailer](c, class)
	require.NoError(t, err)
	assert.Equal(t, "smtp.local", a.Host)
	assert.Same(t, a, container.MustResolve[*Mailer](c, class))

	got, ok, err := c.BuildObject(class)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, a, got)
}

func TestApply_UnknownClassFailsOnGet(t *testing.T) {
	c := container.New()
	m := &manifest.Manifest{Services: []manifest.Service{{Key: "ghost", Class: "example.com/app.Ghost"}}}
	require.NoError(t, m.Apply(c))

	_, err := c.Get("ghost")
	var notFound *container.KeyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "example.com/app.Ghost", notFound.Key)
}

func TestApply_ProtectedConflict(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Protect("app.name", "kernel"))

	m, err := manifest.LoadFile("testdata/services.yaml")
	require.NoError(t, err)

	err = m.Apply(c)
	assert.ErrorIs(t, err, container.ErrProtectedKey)
	assert.True(t, c.Has("greeting"), "other services are still registered")

	require.NoError(t, m.Apply(c, manifest.SkipProtected()))
	assert.Equal(t, "kernel", container.MustResolve[string](c, "app.name"))
}

func TestApply_TwiceDoesNotDuplicateTags(t *testing.T) {
	m := &manifest.Manifest{
		Services: []manifest.Service{{Key: "a", Value: 1}, {Key: "b", Value: 2}},
		Aliases:  map[string]string{"bee": "b"},
		Tags:     map[string][]string{"nums": {"a", "bee"}},
	}
	c := container.New()
	require.NoError(t, m.Apply(c))
	require.NoError(t, m.Apply(c))

	assert.Equal(t, []string{"a", "b"}, c.TaggedKeys("nums"))
}

func TestMarshal_RoundTrip(t *testing.T) {
	m, err := manifest.LoadFile("testdata/services.yaml")
	require.NoError(t, err)

	out, err := m.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "copy.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o600))

	again, err := manifest.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.Aliases, again.Aliases)
	assert.Len(t, again.Services, len(m.Services))
	assert.True(t, strings.Contains(string(out), "app.name"))
}

func TestValidate_JoinedErrorsUnwrap(t *testing.T) {
	m := &manifest.Manifest{Services: []manifest.Service{{Key: "x"}, {Key: "y"}}}
	err := m.Validate()

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 2)
}
