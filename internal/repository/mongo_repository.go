package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medidesk-go/internal/model"
)

const (
	chatsCollection        = "chats"
	appointmentsCollection = "appointments"
)

type mongoChatLogRepository struct {
	coll *mongo.Collection
}

// NewMongoChatLogRepository 创建一个基于 MongoDB 'chats' 集合的 ChatLogRepository。
func NewMongoChatLogRepository(db *mongo.Database) ChatLogRepository {
	return &mongoChatLogRepository{coll: db.Collection(chatsCollection)}
}

func (r *mongoChatLogRepository) Create(ctx context.Context, chat *model.ChatLog) error {
	prepareChatLog(chat)
	_, err := r.coll.InsertOne(ctx, chat)
	return err
}

func (r *mongoChatLogRepository) List(ctx context.Context, limit int) ([]model.ChatLog, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, newestFirst(limit))
	if err != nil {
		return nil, err
	}
	var chats []model.ChatLog
	if err := cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

type mongoAppointmentRepository struct {
	coll *mongo.Collection
}

// NewMongoAppointmentRepository 创建一个基于 MongoDB 'appointments' 集合的 AppointmentRepository。
func NewMongoAppointmentRepository(db *mongo.Database) AppointmentRepository {
	return &mongoAppointmentRepository{coll: db.Collection(appointmentsCollection)}
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	if err := prepareAppointment(appt); err != nil {
		return err
	}
	_, err := r.coll.InsertOne(ctx, appt)
	return err
}

func (r *mongoAppointmentRepository) List(ctx context.Context, limit int, status *model.AppointmentStatus) ([]model.Appointment, error) {
	filter := bson.D{}
	if status != nil {
		filter = bson.D{{Key: "status", Value: string(*status)}}
	}
	cur, err := r.coll.Find(ctx, filter, newestFirst(limit))
	if err != nil {
		return nil, err
	}
	var list []model.Appointment
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func newestFirst(limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
}
