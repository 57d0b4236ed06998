package courier_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/miruken-go/courier"
	"github.com/stretchr/testify/suite"
)

type (
	Animal struct {
		Name string
	}

	Mammal struct {
		Animal
		Legs int
	}

	Dog struct {
		Mammal
		Breed string
	}

	Rock struct{}

	Named interface {
		Title() string
	}

	Walker interface {
		Walk() string
	}

	Swimmer interface {
		Swim() string
	}

	Duck struct{}
)

func (a Animal) Title() string { return a.Name }

func (d Duck) Walk() string { return "waddle" }
func (d Duck) Swim() string { return "paddle" }

type ClosestMatchTestSuite struct {
	suite.Suite
}

func (suite *ClosestMatchTestSuite) TestClosestMatch() {
	dog := reflect.TypeFor[Dog]()

	suite.Run("Nearest Ancestor", func () {
		match, err := courier.ClosestMatch(dog, []reflect.Type{
			reflect.TypeFor[Animal](), reflect.TypeFor[Mammal](),
		}, true)
		suite.Require().NoError(err)
		suite.Equal(reflect.TypeFor[Mammal](), match)
	})

	suite.Run("Distant Ancestor", func () {
		match, err := courier.ClosestMatch(dog, []reflect.Type{reflect.TypeFor[Animal]()}, true)
		suite.Require().NoError(err)
		suite.Equal(reflect.TypeFor[Animal](), match)
	})

	suite.Run("Exact", func () {
		match, err := courier.ClosestMatch(dog, []reflect.Type{
			reflect.TypeFor[any](), reflect.TypeFor[Animal](), dog,
		}, true)
		suite.Require().NoError(err)
		suite.Equal(dog, match)
	})

	suite.Run("Unrelated", func () {
		match, err := courier.ClosestMatch(dog, []reflect.Type{reflect.TypeFor[Rock]()}, true)
		suite.Require().NoError(err)
		suite.Nil(match)
	})

	suite.Run("Pointer Ancestors", func () {
		match, err := courier.ClosestMatch(reflect.TypeFor[*Dog](), []reflect.Type{
			reflect.TypeFor[*Animal](), reflect.TypeFor[*Mammal](), reflect.TypeFor[Mammal](),
		}, true)
		suite.Require().NoError(err)
		suite.Equal(reflect.TypeFor[*Mammal](), match)
	})

	suite.Run("Any Is Farthest", func () {
		match, err := courier.ClosestMatch(dog, []reflect.Type{
			reflect.TypeFor[any](), reflect.TypeFor[Animal](),
		}, true)
		suite.Require().NoError(err)
		suite.Equal(reflect.TypeFor[Animal](), match)
	})

	suite.Run("Concrete Beats Interface", func () {
		match, err := courier.ClosestMatch(reflect.TypeFor[Mammal](), []reflect.Type{
			reflect.TypeFor[Named](), reflect.TypeFor[Animal](),
		}, true)
		suite.Require().NoError(err)
		suite.Equal(reflect.TypeFor[Animal](), match)
	})

	suite.Run("Tie Fails", func () {
		_, err := courier.ClosestMatch(reflect.TypeFor[Duck](), []reflect.Type{
			reflect.TypeFor[Walker](), reflect.TypeFor[Swimmer](),
		}, true)
		var ambiguous *courier.AmbiguousMatchError
		suite.Require().ErrorAs(err, &ambiguous)
		suite.Equal(reflect.TypeFor[Duck](), ambiguous.Target)
		suite.ElementsMatch([]reflect.Type{
			reflect.TypeFor[Walker](), reflect.TypeFor[Swimmer](),
		}, ambiguous.Candidates[:])
	})

	suite.Run("Tie Picks First", func () {
		for _, order := range [][]reflect.Type{
			{reflect.TypeFor[Walker](), reflect.TypeFor[Swimmer]()},
			{reflect.TypeFor[Swimmer](), reflect.TypeFor[Walker]()},
		} {
			match, err := courier.ClosestMatch(reflect.TypeFor[Duck](), order, false)
			suite.Require().NoError(err)
			suite.Equal(order[0], match, fmt.Sprint(order))
		}
	})

	suite.Run("Tie Broken By Closer Match", func () {
		match, err := courier.ClosestMatch(reflect.TypeFor[Duck](), []reflect.Type{
			reflect.TypeFor[Walker](), reflect.TypeFor[Swimmer](), reflect.TypeFor[Duck](),
		}, true)
		suite.Require().NoError(err)
		suite.Equal(reflect.TypeFor[Duck](), match)
	})
}

func (suite *ClosestMatchTestSuite) TestAdapt() {
	dog := Dog{Mammal{Animal{"Rex"}, 4}, "Collie"}

	suite.Run("Assignable", func () {
		v, ok := courier.Adapt(reflect.ValueOf(dog), reflect.TypeFor[Named]())
		suite.Require().True(ok)
		suite.Equal("Rex", v.Interface().(Named).Title())
	})

	suite.Run("Embedded Value", func () {
		v, ok := courier.Adapt(reflect.ValueOf(dog), reflect.TypeFor[Animal]())
		suite.Require().True(ok)
		suite.Equal(Animal{"Rex"}, v.Interface())
	})

	suite.Run("Embedded Pointer", func () {
		v, ok := courier.Adapt(reflect.ValueOf(&dog), reflect.TypeFor[*Mammal]())
		suite.Require().True(ok)
		mammal := v.Interface().(*Mammal)
		suite.Same(&dog.Mammal, mammal)
	})

	suite.Run("Unrelated", func () {
		_, ok := courier.Adapt(reflect.ValueOf(dog), reflect.TypeFor[Rock]())
		suite.False(ok)
	})
}

func TestClosestMatchTestSuite(t *testing.T) {
	suite.Run(t, new(ClosestMatchTestSuite))
}
