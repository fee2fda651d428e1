/*
Copyright 2025 QuickApiMapper Authors.

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

package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	redis_db "github.com/JerrettDavis/QuickApiMapper-sub001/internal/redis-db"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Queue names. Deliveries are sharded across numbered DELIVERY_QUEUE queues
// so all deliveries for one endpoint stay in order.
const (
	DELIVERY_QUEUE = "new:delivery"
	INDEX_QUEUE    = "new:index"
	WEBHOOK_QUEUE  = "new:webhook"
	HOOKS_QUEUE    = "new:hooks"
)

// Queue represents a queue for handling various tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue adds a delivery to the Redis queue shard owned by its endpoint.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - delivery *model.Delivery: The delivery to be enqueued.
//
// Returns:
// - error: An error if the delivery could not be enqueued.
func (q *Queue) Enqueue(ctx context.Context, delivery *model.Delivery) error {
	ctx, span := tracer.Start(ctx, "Adding Delivery To Redis Queue")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(delivery)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, q.deliveryTask(conf, delivery, payload), asynq.MaxRetry(conf.Forward.MaxRetries))
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued delivery: %+v", delivery.DeliveryID)

	return nil
}

// deliveryTask generates a task for a delivery and assigns it to a specific
// queue shard based on the endpoint name. Hashing the endpoint keeps every
// delivery for the same downstream in one queue, so they are processed
// serially and reach the remote system in the order they were mapped.
//
// Parameters:
// - conf *config.Configuration: The configuration holding the shard count.
// - delivery *model.Delivery: The delivery for which to generate the task.
// - payload []byte: The serialized delivery data.
//
// Returns:
// - *asynq.Task: The generated task ready to be enqueued.
func (q *Queue) deliveryTask(conf *config.Configuration, delivery *model.Delivery, payload []byte) *asynq.Task {
	queueIndex := hashEndpoint(delivery.Endpoint) % conf.Forward.NumsOfQueue
	queueName := fmt.Sprintf("%s_%d", DELIVERY_QUEUE, queueIndex+1)

	taskOptions := []asynq.Option{asynq.TaskID(delivery.DeliveryID), asynq.Queue(queueName)}
	return asynq.NewTask(queueName, payload, taskOptions...)
}

// hashEndpoint returns a consistent hash value for an endpoint name.
func hashEndpoint(endpoint string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(endpoint))
	return int(hasher.Sum32())
}

// queueIndexData enqueues a task to index data in a specified collection.
// Indexing is skipped entirely when no TypeSense host is configured.
//
// Parameters:
// - id string: The ID of the data to index.
// - collection string: The name of the collection to index the data in.
// - data interface{}: The data to be indexed.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) queueIndexData(id string, collection string, data interface{}) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.TypeSense.Dns == "" {
		return nil
	}

	payload := map[string]interface{}{
		"collection": collection,
		"payload":    data,
	}

	IPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(INDEX_QUEUE)}
	task := asynq.NewTask(INDEX_QUEUE, IPayload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued index data: %+v", id)
	return nil
}

// GetDeliveryFromQueue retrieves a queued delivery by its ID.
//
// Parameters:
// - deliveryID string: The ID of the delivery to retrieve.
//
// Returns:
// - *model.Delivery: A pointer to the Delivery model if found.
// - error: An error if the delivery could not be retrieved.
func (q *Queue) GetDeliveryFromQueue(deliveryID string) (*model.Delivery, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	// Iterate over all delivery queue shards
	for i := 1; i <= conf.Forward.NumsOfQueue; i++ {
		queueName := fmt.Sprintf("%s_%d", DELIVERY_QUEUE, i)
		task, err := q.Inspector.GetTaskInfo(queueName, deliveryID)
		if err == nil && task != nil {
			var delivery model.Delivery
			if err := json.Unmarshal(task.Payload, &delivery); err != nil {
				return nil, err
			}
			return &delivery, nil
		}
	}
	return nil, nil // Return nil if delivery is not found in any queue
}
