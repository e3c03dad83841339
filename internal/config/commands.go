package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Commands holds the inbound keyword sets and reply texts of the command listener.
type Commands struct {
	Subscribe   []string `yaml:"subscribe"`
	Unsubscribe []string `yaml:"unsubscribe"`
	Help        []string `yaml:"help"`
	Replies     Replies  `yaml:"replies"`
}

type Replies struct {
	Subscribed   string `yaml:"subscribed"`
	Unsubscribed string `yaml:"unsubscribed"`
	Help         string `yaml:"help"`
	Failure      string `yaml:"failure"`
}

// DefaultCommands returns the Arabic/English keyword sets the bot ships with.
func DefaultCommands() Commands {
	return Commands{
		Subscribe:   []string{"اشتراك", "subscribe", "start", "تفعيل"},
		Unsubscribe: []string{"إلغاء", "stop", "unsubscribe", "إيقاف", "الغاء"},
		Help:        []string{"مساعدة", "help", "?"},
		Replies: Replies{
			Subscribed:   "✅ تم تفعيل اشتراكك في إشعارات وصل-لي!\n\nستصلك تحديثات فورية عن طلباتك.",
			Unsubscribed: "❌ تم إلغاء اشتراكك في الإشعارات.",
			Help:         "📱 أوامر البوت:\n• اشتراك: تفعيل الإشعارات\n• إلغاء: إيقاف الإشعارات",
			Failure:      "⚠️ تعذر تنفيذ طلبك الآن، حاول مرة أخرى لاحقاً.",
		},
	}
}

// LoadCommands reads a YAML command file over the defaults. Sections absent
// from the file keep their default values. An empty path returns the defaults.
func LoadCommands(path string) (Commands, error) {
	cmds := DefaultCommands()
	if path == "" {
		return cmds, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cmds, fmt.Errorf("read commands file: %w", err)
	}
	var file Commands
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cmds, fmt.Errorf("parse commands file: %w", err)
	}
	if len(file.Subscribe) > 0 {
		cmds.Subscribe = file.Subscribe
	}
	if len(file.Unsubscribe) > 0 {
		cmds.Unsubscribe = file.Unsubscribe
	}
	if len(file.Help) > 0 {
		cmds.Help = file.Help
	}
	if file.Replies.Subscribed != "" {
		cmds.Replies.Subscribed = file.Replies.Subscribed
	}
	if file.Replies.Unsubscribed != "" {
		cmds.Replies.Unsubscribed = file.Replies.Unsubscribed
	}
	if file.Replies.Help != "" {
		cmds.Replies.Help = file.Replies.Help
	}
	if file.Replies.Failure != "" {
		cmds.Replies.Failure = file.Replies.Failure
	}
	return cmds, nil
}
