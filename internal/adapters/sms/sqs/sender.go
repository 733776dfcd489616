// Package sqs encola los SMS salientes en una cola SQS; un worker del
// operador de SMS los entrega.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// API es el subconjunto de *sqs.Client que usamos (fake en tests).
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Message es el cuerpo que lee el worker de SMS.
type Message struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

type Sender struct {
	client   API
	queueURL string
	now      func() time.Time
}

func NewSender(client API, queueURL string) *Sender {
	return &Sender{client: client, queueURL: queueURL, now: time.Now}
}

// NewFromEnv arma el cliente con la cadena de credenciales estándar de AWS
// (env, shared config, IMDS). AWS_ENDPOINT_URL apunta a localstack en dev.
func NewFromEnv(ctx context.Context, queueURL string) (*Sender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})
	return NewSender(client, queueURL), nil
}

func (s *Sender) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(Message{
		To:        to,
		Body:      body,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}
