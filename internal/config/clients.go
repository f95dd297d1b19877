package config

import (
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/processor"
	"github.com/cuongbtq/clip-repurposer/shared/logger"
	"github.com/cuongbtq/clip-repurposer/shared/postgresql"
	"github.com/cuongbtq/clip-repurposer/shared/rabbitmq"
)

// LoggerConfig maps the logging section onto the shared logger
func (c *LoggingConfig) LoggerConfig() *logger.Config {
	timeFormat := c.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	return &logger.Config{
		Level:        c.Level,
		Format:       c.Format,
		Output:       c.Output,
		EnableSource: c.EnableCaller,
		TimeFormat:   timeFormat,
	}
}

// ClientConfig maps the database section onto the PostgreSQL client
func (c *DatabaseConfig) ClientConfig() *postgresql.Config {
	return &postgresql.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		ConnectTimeout:  c.ConnectTimeout,
	}
}

// ClientConfig maps the rabbitmq section onto the RabbitMQ client. Publish
// settings only matter to the API, consumer settings only to the worker.
func (c *RabbitMQConfig) ClientConfig() *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.User,
		Password:           c.Password,
		VHost:              c.VHost,
		ExchangeName:       c.Exchange.Name,
		ExchangeType:       c.Exchange.Type,
		ExchangeDurable:    c.Exchange.Durable,
		ExchangeAutoDelete: c.Exchange.AutoDelete,
		QueueName:          c.Queue.Name,
		QueueDurable:       c.Queue.Durable,
		QueueAutoDelete:    c.Queue.AutoDelete,
		QueueExclusive:     c.Queue.Exclusive,
		RoutingKey:         c.RoutingKey,
		RetryAttempts:      c.Connection.RetryAttempts,
		RetryInterval:      c.Connection.RetryInterval,
		Heartbeat:          c.Connection.Heartbeat,
		ConnectionTimeout:  c.Connection.ConnectionTimeout,
		PublishRetries:     c.Publish.RetryAttempts,
		PublishRetryDelay:  c.Publish.RetryInterval,
		PublishBackoffMult: c.Publish.BackoffMultiplier,
		PrefetchCount:      c.Consumer.PrefetchCount,
		ConsumerExclusive:  c.Consumer.Exclusive,
	}
}

// ExecConfig maps the processor section onto the command runner
func (c *ProcessorConfig) ExecConfig() processor.ExecConfig {
	return processor.ExecConfig{
		Command:     c.Command,
		Args:        c.Args,
		WorkDir:     c.WorkDir,
		Env:         c.Env,
		MaxRuntime:  c.MaxRuntime,
		CallbackURL: c.CallbackURL,
	}
}
