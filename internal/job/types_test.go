package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_CloneIsDeep(t *testing.T) {
	orig := sampleTemplate()
	orig.Axes = []Axis{{Name: "os", Values: []string{"linux"}}}

	clone := orig.Clone()
	clone.Steps[0].Run = "changed"
	clone.Parameters["TARGET"] = "changed"
	clone.Permissions["devs"][0] = "admin"
	clone.Axes[0].Values[0] = "windows"

	assert.Equal(t, "make test BRANCH={{ .Branch }}", orig.Steps[0].Run)
	assert.Equal(t, "{{ .Project }}-{{ .Name }}", orig.Parameters["TARGET"])
	assert.Equal(t, "build", orig.Permissions["devs"][0])
	assert.Equal(t, "linux", orig.Axes[0].Values[0])
}

func TestConfig_EqualIgnoresEmptyCollections(t *testing.T) {
	a := Config{Source: NoSource(), Axes: []Axis{{Name: "os"}}}
	b := Config{
		Source:      NoSource(),
		Steps:       []Step{},
		Parameters:  map[string]string{},
		Permissions: map[string][]string{},
		Axes:        []Axis{{Name: "os", Values: []string{}}},
	}
	assert.True(t, a.Equal(b))

	b.Parameters["TARGET"] = "x"
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(Config{Source: NoSource(), Disabled: true, Axes: a.Axes}))
}

func TestChild_Clone(t *testing.T) {
	var nilChild *Child
	assert.Nil(t, nilChild.Clone())

	c := &Child{Name: "main", Config: sampleTemplate()}
	clone := c.Clone()
	clone.Config.Steps[0].Name = "other"
	clone.Disabled = true

	assert.Equal(t, "test", c.Config.Steps[0].Name)
	assert.False(t, c.Disabled)
}

func TestSourceBinding_IsNone(t *testing.T) {
	assert.True(t, NoSource().IsNone())
	assert.True(t, SourceBinding{}.IsNone())
	assert.False(t, SourceBinding{Type: "git"}.IsNone())
}
