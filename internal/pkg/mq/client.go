package mq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// channel 是 RabbitMQClient 用到的 amqp.Channel 方法，测试中可替换
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQClient 封装了 RabbitMQ 的连接和通道
type RabbitMQClient struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
}

// NewRabbitMQClient 创建客户端并声明 topic exchange
func NewRabbitMQClient(amqpURL, exchange string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	c, err := newClient(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newClient(ch channel, exchange string) (*RabbitMQClient, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // delete when unused
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQClient{channel: ch, exchange: exchange}, nil
}

// Publish 以 JSON 持久化消息发布到 exchange
func (c *RabbitMQClient) Publish(routingKey string, body []byte) error {
	return c.channel.Publish(
		c.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent, // make message persistent
		},
	)
}

// Close the channel and connection
func (c *RabbitMQClient) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
