package learning

// Contenido embebido: la app funciona sin conexión con esto.

var catalog = Catalog{
	Schools: []string{
		"Abellana National School",
		"Camp Lapu-Lapu National High School",
		"Cebu City National Science High School",
		"City Central Elementary School",
		"Don Vicente Rama Memorial National High School",
		"Mabolo National High School",
		"Ramon Duterte Memorial National High School",
	},
	Grades:   []string{"Grade 4", "Grade 5", "Grade 6", "Grade 7", "Grade 8", "Grade 9", "Grade 10"},
	Quarters: []string{"Quarter 1", "Quarter 2", "Quarter 3", "Quarter 4"},
	Subjects: []string{"Biology", "Mathematics", "English", "Araling Panlipunan", "Filipino"},
}

var modules = []Module{
	{ID: "1", Title: "Lesson 1: Plant Anatomy", Subtitle: "Roots, stems, and leaves."},
	{ID: "2", Title: "Lesson 2: Photosynthesis", Subtitle: "How plants make food."},
	{ID: "3", Title: "Lesson 3: Ecosystems", Subtitle: "Interactions in nature."},
}

// defaultModules es la selección inicial del onboarding.
var defaultModules = []string{"1"}

var lessons = map[string]Lesson{
	"1": {
		ID:    "1",
		Title: "Lesson 1: Plant Anatomy & Photosynthesis",
		Paragraphs: []string{
			"Plants are essential to life on Earth. They are the only living things that can make their own food. To do this, they rely on a process called photosynthesis.",
			"The roots of a plant anchor it to the ground and absorb water and nutrients from the soil. The stem provides structure and carries the water up to the leaves.",
			"Leaves are the food factories of the plant. They capture sunlight and use it to turn carbon dioxide and water into glucose (sugar) and oxygen. This is the miracle of photosynthesis.",
		},
	},
}

var quizzes = map[string]Quiz{
	"1": {
		LessonID:     "1",
		Title:        "Self-Check: Plant Anatomy",
		Instructions: "Solve these on a piece of scratch paper.",
		Sections: []QuizSection{
			{
				Tier:  TierEasy,
				Label: "Foundational",
				Questions: []Question{
					{Number: 1, Prompt: "What part of the plant absorbs water from the soil?", Options: []string{"Leaves", "Roots", "Stem", "Flowers"}},
					{Number: 2, Prompt: "Which gas do plants need for photosynthesis?", Options: []string{"Oxygen", "Nitrogen", "Carbon Dioxide", "Hydrogen"}},
				},
			},
			{
				Tier:  TierMedium,
				Label: "Application",
				Questions: []Question{
					{Number: 5, Prompt: "If a plant's stem is damaged, what process is most directly affected first?", Options: []string{"Sun absorption", "Water transport", "Pollination"}},
				},
			},
			{
				Tier:  TierHard,
				Label: "Complex",
				Questions: []Question{
					{Number: 9, Prompt: "Explain the relationship between cellular respiration in humans and photosynthesis in plants.", Hint: "Write a brief paragraph on your paper"},
				},
			},
		},
		AnswerKey: AnswerKey{Code: "BIO5-Q2-L1", Number: "09123456789"},
	},
}
