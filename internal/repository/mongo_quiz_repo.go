package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hyra-backend/internal/models"
)

type MongoQuizRepo struct {
	quizzes   *mongo.Collection
	questions *mongo.Collection
	files     *mongo.Collection
}

func NewMongoQuizRepo(db *mongo.Database) *MongoQuizRepo {
	return &MongoQuizRepo{
		quizzes:   db.Collection("quizzes"),
		questions: db.Collection("questions"),
		files:     db.Collection("files"),
	}
}

func (r *MongoQuizRepo) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.quizzes.FindOne(ctx, bson.M{"_id": id}).Decode(&quiz)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *MongoQuizRepo) ListQuizzesByUser(ctx context.Context, userID string) ([]*models.Quiz, error) {
	return r.findQuizzes(ctx, bson.M{"userId": userID})
}

func (r *MongoQuizRepo) ListQuizzesByFile(ctx context.Context, fileID string) ([]*models.Quiz, error) {
	return r.findQuizzes(ctx, bson.M{"fileId": fileID})
}

func (r *MongoQuizRepo) findQuizzes(ctx context.Context, filter bson.M) ([]*models.Quiz, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "createdAt", Value: -1}})
	cur, err := r.quizzes.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	quizzes := []*models.Quiz{}
	for cur.Next(ctx) {
		var q models.Quiz
		if err := cur.Decode(&q); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, &q)
	}
	return quizzes, cur.Err()
}

func (r *MongoQuizRepo) ListQuestions(ctx context.Context, quizID string) ([]*models.Question, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "position", Value: 1}})
	cur, err := r.questions.Find(ctx, bson.M{"quizId": quizID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	questions := []*models.Question{}
	for cur.Next(ctx) {
		var q models.Question
		if err := cur.Decode(&q); err != nil {
			return nil, err
		}
		questions = append(questions, &q)
	}
	return questions, cur.Err()
}

// CreateQuiz inserts the quiz and then its questions. Standalone servers have
// no multi-document transactions, so a failed question insert removes the quiz again.
func (r *MongoQuizRepo) CreateQuiz(ctx context.Context, quiz *models.Quiz, questions []*models.Question) error {
	if _, err := r.quizzes.InsertOne(ctx, quiz); err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}
	if len(questions) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(questions))
	for _, q := range questions {
		docs = append(docs, q)
	}
	if _, err := r.questions.InsertMany(ctx, docs); err != nil {
		r.questions.DeleteMany(context.Background(), bson.M{"quizId": quiz.ID})
		r.quizzes.DeleteOne(context.Background(), bson.M{"_id": quiz.ID})
		return fmt.Errorf("failed to insert questions: %w", err)
	}
	return nil
}

func (r *MongoQuizRepo) SaveUserAnswers(ctx context.Context, quizID string, answers map[string]int) error {
	if len(answers) == 0 {
		return nil
	}

	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(answers))
	for questionID, selected := range answers {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": questionID, "quizId": quizID}).
			SetUpdate(bson.M{"$set": bson.M{"userAnswer": selected, "updatedAt": now}}))
	}

	_, err := r.questions.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// RaiseHighestScore relies on the $lt filter so the compare and the write are one atomic step.
func (r *MongoQuizRepo) RaiseHighestScore(ctx context.Context, quizID string, score int) (bool, error) {
	res, err := r.quizzes.UpdateOne(ctx,
		bson.M{"_id": quizID, "highestScore": bson.M{"$lt": score}},
		bson.M{"$set": bson.M{"highestScore": score, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoQuizRepo) IncrementFileQuizCount(ctx context.Context, fileID string) error {
	res, err := r.files.UpdateOne(ctx,
		bson.M{"_id": fileID},
		bson.M{"$inc": bson.M{"quizCount": 1}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
