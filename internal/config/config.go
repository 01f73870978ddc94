package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"taskraid/internal/domain"
	"taskraid/internal/engine"
	"taskraid/internal/game"
)

// Config models taskraid.yml.
type Config struct {
	Game    game.Config `yaml:"game"`
	Sweep   Sweep       `yaml:"sweep"`
	Catalog Catalog     `yaml:"catalog"`
}

type Sweep struct {
	Limit   int `yaml:"limit"`
	Workers int `yaml:"workers"`
}

type Catalog struct {
	BossTypes []BossType `yaml:"boss_types"`
	Effects   []Effect   `yaml:"effects"`
	Items     []Item     `yaml:"items"`
}

type BossType struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Image    string `yaml:"image"`
	Category string `yaml:"category"`
}

type Effect struct {
	ID          string  `yaml:"id"`
	Type        string  `yaml:"type"`
	Value       float64 `yaml:"value"`
	Polarity    string  `yaml:"polarity"`
	Rarity      int     `yaml:"rarity"`
	Description string  `yaml:"description"`
}

type Item struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Effect      string `yaml:"effect"`
}

// Engine converts the catalog section into the engine's seed form.
func (c Catalog) Engine() engine.Catalog {
	var out engine.Catalog
	for _, bt := range c.BossTypes {
		out.BossTypes = append(out.BossTypes, domain.BossType{
			ID:       bt.ID,
			Name:     bt.Name,
			Image:    bt.Image,
			Category: domain.BossCategory(bt.Category),
		})
	}
	for _, e := range c.Effects {
		out.Effects = append(out.Effects, domain.Effect{
			ID:          e.ID,
			Type:        domain.EffectType(e.Type),
			Value:       e.Value,
			Polarity:    domain.Polarity(e.Polarity),
			Rarity:      e.Rarity,
			Description: e.Description,
		})
	}
	for _, it := range c.Items {
		out.Items = append(out.Items, domain.Item{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			EffectID:    it.Effect,
		})
	}
	return out
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := c.Game.Validate(); err != nil {
		return err
	}
	if c.Sweep.Limit < 0 {
		return fmt.Errorf("config.sweep.limit must not be negative")
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("config.sweep.workers must not be negative")
	}
	var normal int
	for _, bt := range c.Catalog.BossTypes {
		if bt.Category == string(domain.BossNormal) {
			normal++
		}
	}
	if len(c.Catalog.BossTypes) > 0 && normal == 0 {
		return fmt.Errorf("config.catalog.boss_types needs at least one normal boss")
	}
	if err := c.Catalog.Engine().Validate(); err != nil {
		return fmt.Errorf("config.catalog: %w", err)
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskraid.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with raid config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to the default config when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := FromYAML([]byte(DefaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes. Fields left out
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Config{
		Game:  game.DefaultConfig(),
		Sweep: Sweep{Limit: 200, Workers: 4},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// DefaultTemplate is written by raid config init.
const DefaultTemplate = `game:
  base_boss_hp: 1000
  base_player_damage: 1000
  base_boss_damage: 10
  attack_score_rate: 0.1
  base_special_boss_hp: 5000
  priority_weight: 1.0
  members_weight: 0.5
  review_base_score: 100

sweep:
  limit: 200
  workers: 4

catalog:
  boss_types:
    - {id: slime-king, name: Slime King, image: bosses/slime-king.png, category: normal}
    - {id: goblin-chief, name: Goblin Chief, image: bosses/goblin-chief.png, category: normal}
    - {id: stone-golem, name: Stone Golem, image: bosses/stone-golem.png, category: normal}
    - {id: deadline-dragon, name: Deadline Dragon, image: bosses/deadline-dragon.png, category: special}

  effects:
    - {id: fumble, type: DAMAGE_DEBUFF, value: 0.3, polarity: BAD, rarity: 2, description: "Next attack deals 30% less damage"}
    - {id: exposed, type: DEFENCE_DEBUFF, value: 0.3, polarity: BAD, rarity: 2, description: "Next boss hit lands 30% harder"}
    - {id: sluggish, type: DAMAGE_DEBUFF, value: 0.1, polarity: BAD, rarity: 1, description: "Next attack deals 10% less damage"}
    - {id: distracted, type: SCORE_PENALTY, value: 0.1, polarity: BAD, rarity: 1, description: "Next task scores 10% less"}
    - {id: sharpened, type: DAMAGE_BUFF, value: 0.1, polarity: GOOD, rarity: 1, description: "Next attack deals 10% more damage"}
    - {id: braced, type: DEFENCE_BUFF, value: 0.1, polarity: GOOD, rarity: 1, description: "Next boss hit lands 10% softer"}
    - {id: bandage, type: HEAL, value: 10, polarity: GOOD, rarity: 1, description: "Heal 10% of max hp"}
    - {id: focused, type: SCORE_BONUS, value: 0.2, polarity: GOOD, rarity: 2, description: "Next task scores 20% more"}
    - {id: fortified, type: DEFENCE_BUFF, value: 0.3, polarity: GOOD, rarity: 2, description: "Next boss hit lands 30% softer"}
    - {id: berserk, type: DAMAGE_BUFF, value: 0.5, polarity: GOOD, rarity: 3, description: "Next attack deals 50% more damage"}
    - {id: second-wind, type: HEAL, value: 50, polarity: GOOD, rarity: 3, description: "Heal 50% of max hp"}

  items:
    - {id: whetstone, name: Whetstone, description: "Sharpens the next strike", effect: sharpened}
    - {id: potion, name: Healing Potion, description: "Restores a little hp", effect: bandage}
    - {id: war-drum, name: War Drum, description: "Sends the holder into a frenzy", effect: berserk}
    - {id: trophy, name: Trophy, description: "Proof of a fight well fought"}
`
