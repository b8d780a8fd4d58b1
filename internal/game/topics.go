package game

import (
	"encoding/json"
	"fmt"
	"os"
)

// TopicTable groups topics by theme name. It is immutable reference data
// loaded once at startup.
type TopicTable map[string][]Topic

// DefaultTopics is the compiled-in topic set used when no topic file is
// configured.
func DefaultTopics() TopicTable {
	return TopicTable{
		"animals": {
			{DisplayName: "cat", AnswerNames: []string{"cat", "kitty", "ねこ"}},
			{DisplayName: "dog", AnswerNames: []string{"dog", "puppy", "いぬ"}},
			{DisplayName: "elephant", AnswerNames: []string{"elephant"}},
			{DisplayName: "penguin", AnswerNames: []string{"penguin"}},
			{DisplayName: "rabbit", AnswerNames: []string{"rabbit", "bunny", "うさぎ"}},
		},
		"food": {
			{DisplayName: "pizza", AnswerNames: []string{"pizza"}},
			{DisplayName: "sushi", AnswerNames: []string{"sushi", "すし"}},
			{DisplayName: "ramen", AnswerNames: []string{"ramen", "noodles", "ラーメン"}},
			{DisplayName: "ice cream", AnswerNames: []string{"ice cream", "icecream"}},
		},
		"objects": {
			{DisplayName: "umbrella", AnswerNames: []string{"umbrella", "かさ"}},
			{DisplayName: "guitar", AnswerNames: []string{"guitar"}},
			{DisplayName: "bicycle", AnswerNames: []string{"bicycle", "bike"}},
			{DisplayName: "clock", AnswerNames: []string{"clock", "watch"}},
		},
	}
}

// LoadTopics reads a theme-to-topic table from a JSON file shaped as
// {"theme": [{"displayName": ..., "answerNames": [...]}]}.
func LoadTopics(path string) (TopicTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}
	var table TopicTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse topics file: %w", err)
	}
	for theme, topics := range table {
		for _, topic := range topics {
			if topic.DisplayName == "" || len(topic.AnswerNames) == 0 {
				return nil, fmt.Errorf("theme %q: topic %q has no accepted answers", theme, topic.DisplayName)
			}
		}
	}
	return table, nil
}

// Themes lists the theme names present in the table.
func (t TopicTable) Themes() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	return names
}

// pool returns every topic whose theme is in the selected set.
func (t TopicTable) pool(selected []string) []Topic {
	var topics []Topic
	for _, theme := range selected {
		topics = append(topics, t[theme]...)
	}
	return topics
}
