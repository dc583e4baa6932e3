package server

import (
	"encoding/json"
	"net/url"
)

type serverConfig struct {
	HostName        string `json:"host"`
	Certificate     string `json:"certificate"`
	PrivateKey      string `json:"privatekey"`
	Port            int    `json:"port"`
	SendUnsigned    bool   `json:"send_unsigned"`
	ReceiveUnsigned bool   `json:"receive_unsigned"`
}

func (s serverConfig) useTLS() bool {
	return s.Certificate != "" && s.PrivateKey != ""
}

type Config struct {
	URL      string       `json:"url"` // public-facing URL
	Database string       `json:"database"`
	Server   serverConfig `json:"server"`
}

func (c Config) PublicHost() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

func ReadConfig(b []byte) (config Config, err error) {
	if uErr := json.Unmarshal(b, &config); uErr != nil {
		return config, uErr
	}
	return config, nil
}
