// Package builtin 提供演示用的内置技能：四则运算、Webhook 触发、
// Slack 风格消息推送与时区时间查询，以及对应的默认技能清单。
package builtin
