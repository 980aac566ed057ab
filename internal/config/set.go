package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Set assigns one key from its string form, validating as it goes.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	switch key {
	case "api_key":
		c.APIKey = val
	case "refine_enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for refine_enabled: %v", val)
		}
		c.RefineEnabled = b
	case "refine_provider":
		switch strings.ToLower(val) {
		case "openrouter":
			c.RefineProvider = "openrouter"
		case "ollama", "local":
			c.RefineProvider = "ollama"
		default:
			return fmt.Errorf("invalid refine_provider: %s (use openrouter or ollama)", val)
		}
	case "refine_model":
		c.RefineModel = val
	case "max_tokens":
		return setInt(&c.MaxTokens, key, val, 1)
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %v (want 0..2)", val)
		}
		c.Temperature = f
	case "refine_wait_sec":
		return setInt(&c.RefineWaitSec, key, val, 0)
	case "http_timeout_sec":
		return setInt(&c.HTTPTimeoutSec, key, val, 1)
	case "retry_max_attempts":
		return setInt(&c.RetryMaxAttempts, key, val, 1)
	case "retry_base_delay_ms":
		return setInt(&c.RetryBaseDelayMs, key, val, 0)
	case "retry_max_delay_ms":
		return setInt(&c.RetryMaxDelayMs, key, val, 0)
	case "ollama_host":
		c.OllamaHost = val
	case "default_technology":
		switch strings.ToLower(val) {
		case "all", "":
			c.DefaultTechnology = "All"
		case "4g", "lte":
			c.DefaultTechnology = "4G"
		case "5g", "nr":
			c.DefaultTechnology = "5G"
		default:
			return fmt.Errorf("invalid default_technology: %s (use All, 4G or 5G)", val)
		}
	case "base_date":
		prev := c.BaseDate
		c.BaseDate = val
		if _, err := c.ParseBaseDate(); err != nil {
			c.BaseDate = prev
			return err
		}
	case "center_lat":
		return setCoord(&c.CenterLat, key, val, 90)
	case "center_lon":
		return setCoord(&c.CenterLon, key, val, 180)
	case "seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for seed: %v", val)
		}
		c.Seed = i
	case "max_rows":
		return setInt(&c.MaxRows, key, val, 0)
	case "serve_addr":
		c.ServeAddr = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the display form of one key. The API key is masked.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "api_key":
		return mask(c.APIKey), nil
	case "refine_enabled":
		return strconv.FormatBool(c.RefineEnabled), nil
	case "refine_provider":
		return c.RefineProvider, nil
	case "refine_model":
		return c.RefineModel, nil
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens), nil
	case "temperature":
		return fmt.Sprintf("%.3f", c.Temperature), nil
	case "refine_wait_sec":
		return strconv.Itoa(c.RefineWaitSec), nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	case "ollama_host":
		return c.OllamaHost, nil
	case "default_technology":
		return c.DefaultTechnology, nil
	case "base_date":
		return c.BaseDate, nil
	case "center_lat":
		return strconv.FormatFloat(c.CenterLat, 'f', -1, 64), nil
	case "center_lon":
		return strconv.FormatFloat(c.CenterLon, 'f', -1, 64), nil
	case "seed":
		return strconv.FormatInt(c.Seed, 10), nil
	case "max_rows":
		return strconv.Itoa(c.MaxRows), nil
	case "serve_addr":
		return c.ServeAddr, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

func setInt(dst *int, key, val string, floor int) error {
	i, err := strconv.Atoi(val)
	if err != nil || i < floor {
		return fmt.Errorf("invalid int for %s: %v", key, val)
	}
	*dst = i
	return nil
}

func setCoord(dst *float64, key, val string, limit float64) error {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || math.IsNaN(f) || f < -limit || f > limit {
		return fmt.Errorf("invalid coordinate for %s: %v", key, val)
	}
	*dst = f
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
