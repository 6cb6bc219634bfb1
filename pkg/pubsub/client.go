package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client owns the Pub/Sub connection and the media topic publisher.
type Client struct {
	client *pubsub.Client
	topic  string
	media  *pubsub.Publisher
}

// NewClient connects to Pub/Sub and verifies the media topic exists. Topics
// are provisioned out of band, never created here.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	topic, err := TopicName(gcp.ProjectID, cfg.MediaTopic)
	if err != nil {
		return nil, err
	}

	psClient, err := pubsub.NewClient(ctx, strings.TrimSpace(gcp.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	c.media = psClient.Publisher(topic)
	// Flush media events promptly.
	c.media.PublishSettings.DelayThreshold = 50 * time.Millisecond
	c.media.PublishSettings.CountThreshold = 10

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub media publisher ready")
	}
	return c, nil
}

// TopicName expands a short topic id into its resource name. Full resource
// names pass through unchanged.
func TopicName(projectID, topic string) (string, error) {
	t := strings.TrimSpace(topic)
	if t == "" {
		return "", errors.New("pubsub media topic is required")
	}
	if strings.HasPrefix(t, "projects/") && strings.Contains(t, "/topics/") {
		return t, nil
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return "", errors.New("gcp project id is required")
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, t), nil
}

// MediaPublisher wraps the media topic in the event envelope publisher.
func (c *Client) MediaPublisher() (*TopicPublisher, error) {
	if c == nil || c.media == nil {
		return nil, errors.New("pubsub client not initialized")
	}
	return NewTopicPublisher(c.media)
}

// Ping backs the readiness check by looking up the media topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.topic)
	default:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
}

// Close flushes pending media events before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.media != nil {
		c.media.Stop()
	}
	return c.client.Close()
}
