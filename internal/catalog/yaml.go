package catalog

import (
	"fmt"
	"io"

	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"gopkg.in/yaml.v3"
)

// File is the YAML import format:
//
//	weeks:
//	  - week: 1
//	    days:
//	      - day: 1
//	        meals: [Rice, Pasta]
//	        desserts: [Cake]
type File struct {
	Weeks []struct {
		Week int `yaml:"week"`
		Days []struct {
			Day      int      `yaml:"day"`
			Meals    []string `yaml:"meals"`
			Desserts []string `yaml:"desserts"`
		} `yaml:"days"`
	} `yaml:"weeks"`
}

func DecodeYAML(r io.Reader) ([]menu.DayMenu, error) {
	var f File

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}

	var out []menu.DayMenu
	for _, w := range f.Weeks {
		for _, d := range w.Days {
			m := menu.DayMenu{Slot: menu.Slot{Week: w.Week, Day: d.Day}}
			for _, name := range d.Meals {
				m.Meals = append(m.Meals, menu.NewOption(name))
			}
			for _, name := range d.Desserts {
				m.Desserts = append(m.Desserts, menu.NewOption(name))
			}
			out = append(out, m)
		}
	}
	return out, nil
}
