//go:build property

package container_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/km-arc/go-container/framework/container"
)

func keyGen() gopter.Gen {
	return gen.Identifier().SuchThat(func(s string) bool { return s != "" })
}

func TestContainerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("shared factories return one instance", prop.ForAll(
		func(key string) bool {
			c := container.New()
			if err := c.Share(key, func(*container.Container) (any, error) { return new(int), nil }); err != nil {
				return false
			}
			a, err1 := c.Get(key)
			b, err2 := c.Get(key)
			return err1 == nil && err2 == nil && a.(*int) == b.(*int)
		},
		keyGen(),
	))

	properties.Property("aliases resolve to the target instance", prop.ForAll(
		func(key, alias string) bool {
			if key == alias {
				return true
			}
			c := container.New()
			c.Alias(alias, key)
			if err := c.Share(key, func(*container.Container) (any, error) { return new(int), nil }); err != nil {
				return false
			}
			a, _ := c.Get(key)
			b, _ := c.Get(alias)
			return a.(*int) == b.(*int)
		},
		keyGen(), keyGen(),
	))

	properties.Property("protected keys reject Set until removed", prop.ForAll(
		func(key string, first, second int) bool {
			c := container.New()
			if err := c.Protect(key, first); err != nil {
				return false
			}
			if err := c.Set(key, second); !errors.Is(err, container.ErrProtectedKey) {
				return false
			}
			if v, _ := c.Get(key); v != first {
				return false
			}
			if err := c.Set(key, nil); err != nil {
				return false
			}
			_, err := c.Get(key)
			return errors.Is(err, container.ErrKeyNotFound)
		},
		keyGen(), gen.Int(), gen.Int(),
	))

	properties.Property("children see parent keys", prop.ForAll(
		func(key string, v int, depth uint8) bool {
			root := container.New()
			if err := root.Share(key, v); err != nil {
				return false
			}
			c := root
			for range int(depth%5) + 1 {
				c = c.CreateChild()
			}
			got, err := c.Get(key)
			return err == nil && got == v && c.Has(key)
		},
		keyGen(), gen.Int(), gen.UInt8(),
	))

	properties.Property("tagged keeps tag order", prop.ForAll(
		func(values []int) bool {
			c := container.New()
			keys := make([]string, len(values))
			for i, v := range values {
				keys[i] = fmt.Sprintf("k%d", i)
				if err := c.Set(keys[i], v); err != nil {
					return false
				}
			}
			c.Tag("group", keys...)
			got, err := c.Tagged("group")
			if err != nil || len(got) != len(values) {
				return false
			}
			for i, v := range values {
				if got[i] != v {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()),
	))

	properties.Property("keys are sorted and unique", prop.ForAll(
		func(keys []string) bool {
			c := container.New()
			for _, k := range keys {
				if err := c.Set(k, 1); err != nil {
					return false
				}
			}
			got := c.Keys()
			return slices.IsSorted(got) && len(slices.Compact(slices.Clone(got))) == len(got)
		},
		gen.SliceOf(keyGen()),
	))

	properties.TestingRun(t)
}
