package dynamo

import (
	"github.com/zlnvch/notesync/models"
)

const sessionSortKey = "TOKENS"

type dynamoSession struct {
	PK           string      `dynamodbav:"PK"`
	SK           string      `dynamodbav:"SK"`
	AccessToken  string      `dynamodbav:"AccessToken"`
	RefreshToken string      `dynamodbav:"RefreshToken"`
	User         models.User `dynamodbav:"User"`
}

func sessionPK(profile string) string {
	return "SESSION#" + profile
}

func sessionToDynamo(profile string, s models.Session) dynamoSession {
	return dynamoSession{
		PK:           sessionPK(profile),
		SK:           sessionSortKey,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         s.User,
	}
}

func sessionFromDynamo(ds dynamoSession) models.Session {
	return models.Session{
		AccessToken:  ds.AccessToken,
		RefreshToken: ds.RefreshToken,
		User:         ds.User,
	}
}
