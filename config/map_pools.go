package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Dosada05/tournament-engine/models"
)

// MapPools - именованные пресеты пулов карт для создания турнира.
type MapPools map[string]models.MapPool

type mapPoolsFile struct {
	Pools map[string][]string `yaml:"pools"`
}

// LoadMapPools читает пресеты из YAML файла:
//
//	pools:
//	  competitive: [ascent, bind, haven, split, lotus, sunset, icebox]
//
// Пустой путь - пресетов нет.
func LoadMapPools(path string) (MapPools, error) {
	if path == "" {
		return MapPools{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map pools file: %w", err)
	}
	return ParseMapPools(data)
}

func ParseMapPools(data []byte) (MapPools, error) {
	var file mapPoolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal map pools: %w", err)
	}

	pools := make(MapPools, len(file.Pools))
	for name, maps := range file.Pools {
		pool := models.MapPool(maps)
		if err := pool.Validate(); err != nil {
			return nil, fmt.Errorf("map pool %q: %w", name, err)
		}
		pools[name] = pool
	}
	return pools, nil
}
