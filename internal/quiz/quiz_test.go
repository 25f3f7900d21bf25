package quiz_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/PoluyanbIch/quizclock/internal/quiz"
)

var opts = []string{"one", "two", "three", "four"}

const capitals = `
id: capitals
title: Capitals
description: Name the capital.
time_limit_minutes: 2
questions:
  - text: Capital of France?
    options: [Rome, Paris, Oslo, Bern]
    answer: 2
    points: 5
    category: geography
  - text: Capital of Norway?
    options: [Oslo, Helsinki, Riga, Tallinn]
    answer: 1
    category: geography
`

var _ = Describe("Builder", func() {
	It("builds a validated definition", func() {
		def, err := quiz.NewBuilder("Go", "basics").
			ID("go").
			TimeLimitMinutes(2).
			AddQuestion("q1", opts, 1, 10, "lang").
			AddQuestion("q2", opts, 3, 5, "tools").
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(def.ID).To(Equal("go"))
		Expect(def.TimeLimit).To(Equal(120))
		Expect(def.Questions).To(HaveLen(2))
		Expect(def.MaxScore()).To(Equal(15))
		Expect(def.Questions[0].Check(1)).To(BeTrue())
		Expect(def.Questions[0].Check(0)).To(BeFalse())
	})

	It("does not share option slices with the caller", func() {
		options := []string{"a", "b", "c", "d"}
		def, err := quiz.NewBuilder("t", "").TimeLimitSeconds(10).AddQuestion("q", options, 0, 1, "c").Build()
		Expect(err).NotTo(HaveOccurred())

		options[0] = "changed"
		Expect(def.Questions[0].Options[0]).To(Equal("a"))
	})

	DescribeTable("rejects invalid quizzes",
		func(b *quiz.Builder) {
			_, err := b.Build()
			Expect(err).To(MatchError(quiz.ErrInvalidQuiz))
		},
		Entry("no questions", quiz.NewBuilder("t", "").TimeLimitSeconds(10)),
		Entry("no title", quiz.NewBuilder(" ", "").TimeLimitSeconds(10).AddQuestion("q", opts, 0, 1, "c")),
		Entry("zero time limit", quiz.NewBuilder("t", "").AddQuestion("q", opts, 0, 1, "c")),
		Entry("negative time limit", quiz.NewBuilder("t", "").TimeLimitSeconds(-1).AddQuestion("q", opts, 0, 1, "c")),
		Entry("three options", quiz.NewBuilder("t", "").TimeLimitSeconds(10).AddQuestion("q", opts[:3], 0, 1, "c")),
		Entry("correct index too large", quiz.NewBuilder("t", "").TimeLimitSeconds(10).AddQuestion("q", opts, 4, 1, "c")),
		Entry("negative correct index", quiz.NewBuilder("t", "").TimeLimitSeconds(10).AddQuestion("q", opts, -1, 1, "c")),
		Entry("zero points", quiz.NewBuilder("t", "").TimeLimitSeconds(10).AddQuestion("q", opts, 0, 0, "c")),
		Entry("empty question text", quiz.NewBuilder("t", "").TimeLimitSeconds(10).AddQuestion(" ", opts, 0, 1, "c")),
	)
})

var _ = Describe("Parse", func() {
	It("reads a YAML quiz with 1-based answers", func() {
		def, err := quiz.Parse([]byte(capitals))
		Expect(err).NotTo(HaveOccurred())

		Expect(def.ID).To(Equal("capitals"))
		Expect(def.TimeLimit).To(Equal(120))
		Expect(def.Questions).To(HaveLen(2))
		Expect(def.Questions[0].Correct).To(Equal(1))
		Expect(def.Questions[0].Points).To(Equal(5))
		Expect(def.Questions[1].Correct).To(Equal(0))
		Expect(def.Questions[1].Points).To(Equal(1))
	})

	It("prefers a limit in seconds", func() {
		def, err := quiz.Parse([]byte("title: t\ntime_limit: 45\ntime_limit_minutes: 3\nquestions:\n  - text: q\n    options: [a, b, c, d]\n    answer: 4\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(def.TimeLimit).To(Equal(45))
		Expect(def.Questions[0].Correct).To(Equal(3))
	})

	It("rejects broken YAML and invalid quizzes", func() {
		_, err := quiz.Parse([]byte("title: [unterminated"))
		Expect(err).To(MatchError(quiz.ErrInvalidQuiz))

		_, err = quiz.Parse([]byte("title: t\ntime_limit: 10\nquestions:\n  - text: q\n    options: [a, b, c, d]\n    answer: 0\n"))
		Expect(err).To(MatchError(quiz.ErrInvalidQuiz))
	})
})

var _ = Describe("LoadDir", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "quizzes-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("loads YAML files in name order and skips others", func() {
		Expect(os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(capitals), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "a.yml"), []byte("id: first\ntitle: First\ntime_limit: 5\nquestions:\n  - text: q\n    options: [a, b, c, d]\n    answer: 1\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)).To(Succeed())

		defs, err := quiz.LoadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(defs).To(HaveLen(2))
		Expect(defs[0].ID).To(Equal("first"))
		Expect(defs[1].ID).To(Equal("capitals"))
	})

	It("fails on an invalid file", func() {
		Expect(os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("title: t\n"), 0o644)).To(Succeed())
		_, err := quiz.LoadDir(dir)
		Expect(err).To(MatchError(quiz.ErrInvalidQuiz))
	})

	It("falls back to the default quizzes", func() {
		defs := quiz.LoadQuizzes(filepath.Join(dir, "missing"))
		Expect(defs).To(Equal(quiz.DefaultQuizzes()))
		for _, d := range defs {
			Expect(d.Validate()).To(Succeed())
		}
	})
})

var _ = Describe("Shuffle", func() {
	var def *quiz.Definition

	BeforeEach(func() {
		b := quiz.NewBuilder("t", "").TimeLimitSeconds(10)
		for _, text := range []string{"q1", "q2", "q3", "q4", "q5", "q6"} {
			b.AddQuestion(text, opts, 0, 1, "c")
		}
		var err error
		def, err = b.Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("keeps every question and leaves the original untouched", func() {
		shuffled := quiz.Shuffle(def)
		Expect(shuffled.Questions).To(ConsistOf(def.Questions))
		Expect(def.Questions[0].Text).To(Equal("q1"))
		Expect(def.Questions[5].Text).To(Equal("q6"))
	})

	It("limits the number of questions", func() {
		Expect(quiz.ShuffleWithLimit(def, 3).Questions).To(HaveLen(3))
		Expect(quiz.ShuffleWithLimit(def, 0).Questions).To(HaveLen(6))
		Expect(quiz.ShuffleWithLimit(def, 10).Questions).To(HaveLen(6))
	})
})

var _ = Describe("MemoryRepository", func() {
	var (
		repo *quiz.MemoryRepository
		def  *quiz.Definition
	)

	BeforeEach(func() {
		var err error
		def, err = quiz.Parse([]byte(capitals))
		Expect(err).NotTo(HaveOccurred())
		repo, err = quiz.NewMemoryRepository(def)
		Expect(err).NotTo(HaveOccurred())
	})

	It("fetches copies", func() {
		got, err := repo.Fetch("capitals")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(def))

		got.Questions[0].Text = "changed"
		again, err := repo.Fetch("capitals")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Questions[0].Text).To(Equal("Capital of France?"))
	})

	It("reports unknown quizzes", func() {
		_, err := repo.Fetch("nope")
		Expect(err).To(MatchError(quiz.ErrNotFound))
	})

	It("assigns IDs and rejects duplicates and invalid quizzes", func() {
		anon := def.Clone()
		anon.ID = ""
		id, err := repo.Add(anon)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		_, err = repo.Add(def)
		Expect(err).To(HaveOccurred())

		bad := def.Clone()
		bad.ID = "bad"
		bad.Questions = nil
		_, err = repo.Add(bad)
		Expect(err).To(MatchError(quiz.ErrInvalidQuiz))

		long := def.Clone()
		long.ID = strings.Repeat("x", quiz.MaxIDLength+1)
		_, err = repo.Add(long)
		Expect(err).To(MatchError(quiz.ErrInvalidQuiz))

		fits := def.Clone()
		fits.ID = strings.Repeat("y", quiz.MaxIDLength)
		_, err = repo.Add(fits)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Fetch(fits.ID)).NotTo(BeNil())
		Expect(len("start_" + fits.ID)).To(BeNumerically("<=", 64))

		list := repo.List()
		Expect(list).To(HaveLen(3))
		Expect(list[0].ID).To(Equal("capitals"))
		Expect(list[1].ID).To(Equal(id))
		Expect(list[2].ID).To(Equal(fits.ID))
	})
})
