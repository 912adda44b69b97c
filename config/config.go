/*
Copyright 2026 DebitRelay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_OPS_PORT       = "5002"
	DEFAULT_QUEUE_CAPACITY = 100000
	DEFAULT_RELAY_QUEUE    = "relay"
	DEFAULT_CONCURRENCY    = 10
	DEFAULT_MAX_RETRIES    = 3
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Port string `json:"port" envconfig:"RELAYER_OPS_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"RELAYER_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"RELAYER_REDIS_DNS"`
}

// QueueConfig bounds the relay work queue. Capacity caps the shared
// in-flight counter checked at admission; Concurrency bounds how many
// delivered jobs the worker processes at once.
type QueueConfig struct {
	RelayQueue       string `json:"relay_queue" envconfig:"RELAYER_QUEUE_NAME"`
	Concurrency      int    `json:"concurrency" envconfig:"RELAYER_QUEUE_CONCURRENCY"`
	Capacity         int64  `json:"capacity" envconfig:"RELAYER_QUEUE_CAPACITY"`
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"RELAYER_QUEUE_MAX_RETRIES"`
}

// ChainConfig holds the per-network connection details, keyed by network id
// in Configuration.Chains.
type ChainConfig struct {
	RpcUrl          string `json:"rpc_url"`
	ContractAddress string `json:"contract_address"`
	RelayerKey      string `json:"relayer_key"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string                 `json:"project_name" envconfig:"RELAYER_PROJECT_NAME"`
	Server       ServerConfig           `json:"server"`
	DataSource   DataSourceConfig       `json:"data_source"`
	Redis        RedisConfig            `json:"redis"`
	Queue        QueueConfig            `json:"queue"`
	Chains       map[string]ChainConfig `json:"chains"`
	Notification Notification           `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("relayer", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called relayer.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Relayer"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_OPS_PORT
		log.Printf("Warning: Ops port not specified in config. Setting default port: %s", DEFAULT_OPS_PORT)
	}

	if cnf.Queue.RelayQueue == "" {
		cnf.Queue.RelayQueue = DEFAULT_RELAY_QUEUE
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = DEFAULT_CONCURRENCY
	}
	if cnf.Queue.Capacity <= 0 {
		cnf.Queue.Capacity = DEFAULT_QUEUE_CAPACITY
		log.Printf("Warning: Queue capacity not specified. Setting default value: %d", DEFAULT_QUEUE_CAPACITY)
	}

	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = DEFAULT_MAX_RETRIES
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Queue.RelayQueue == "" {
		mockConfig.Queue.RelayQueue = DEFAULT_RELAY_QUEUE
	}
	if mockConfig.Queue.MaxRetryAttempts <= 0 {
		mockConfig.Queue.MaxRetryAttempts = DEFAULT_MAX_RETRIES
	}
	if mockConfig.Queue.Capacity <= 0 {
		mockConfig.Queue.Capacity = DEFAULT_QUEUE_CAPACITY
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
