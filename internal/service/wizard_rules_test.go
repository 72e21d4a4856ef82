package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

func TestAgeOnComparesCalendarDays(t *testing.T) {
	birth := models.NewDate(2008, time.March, 10)

	assert.Equal(t, 17, AgeOn(birth, time.Date(2026, time.March, 9, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 18, AgeOn(birth, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)))
}

func TestAgeOnLeapDayBirth(t *testing.T) {
	birth := models.NewDate(2008, time.February, 29)

	assert.Equal(t, 17, AgeOn(birth, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 18, AgeOn(birth, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIsAdultUnsetBirthDate(t *testing.T) {
	assert.False(t, IsAdult(models.Date{}, fixtureToday))
	assert.True(t, IsAdult(models.NewDate(1990, time.January, 1), fixtureToday))
}

func TestCleanDocumentAndNormalizeEmail(t *testing.T) {
	assert.Equal(t, "12345678900", CleanDocument("123.456.789-00"))
	assert.Equal(t, "", CleanDocument("abc"))
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
}
