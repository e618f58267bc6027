//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"linkage/internal/contact/models"
	"linkage/internal/contact/publisher"
	"linkage/pkg/testutil/containers"
)

type KafkaIntegrationSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaIntegrationSuite))
}

func (s *KafkaIntegrationSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *KafkaIntegrationSuite) TestPublishedEventsAreConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "contact-links-it"

	s.Require().NoError(publisher.EnsureTopic(ctx, s.brokers, topic, 1, 1))
	// second call tolerates the existing topic
	s.Require().NoError(publisher.EnsureTopic(ctx, s.brokers, topic, 1, 1))

	pub, err := publisher.NewKafka(publisher.Config{Brokers: s.brokers, Topic: topic}, nil)
	s.Require().NoError(err)
	defer pub.Close()

	event := models.NewLinkEvent(models.LinkEventPrimaryCreated, 7, 7, time.Now().UTC())
	s.Require().NoError(pub.Publish(ctx, []models.LinkEvent{event}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)

	var got models.LinkEvent
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.ID, got.ID)
	s.Equal("7", string(records[0].Key))
}
